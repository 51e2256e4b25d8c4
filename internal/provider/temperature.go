package provider

import (
	"context"
	"strings"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// defaultLabel is used for chips that expose a single unlabelled input.
const defaultLabel = "temp"

// Temperature groups sensor readings by chip.
type Temperature struct {
	sys System
}

func NewTemperature(sys System) *Temperature {
	return &Temperature{sys: sys}
}

func (*Temperature) Name() string { return "temperature" }

// Collect accepts partial results: gopsutil returns the readings it could
// take together with a warning for the ones it could not.
func (t *Temperature) Collect(ctx context.Context) (telemetry.Sample, error) {
	stats, err := t.sys.SensorsTemperatures(ctx)
	if len(stats) == 0 {
		if err != nil {
			return nil, queryFailed("sensors", err)
		}
		return nil, errors.New().WithMessage(ErrNoData, "no temperature sensors found")
	}

	// Without chip names every key becomes its own chip.
	names, _ := t.sys.SensorChips(ctx)

	chips := telemetry.NewOrdered[[]telemetry.SensorReading]()
	for _, s := range stats {
		chip, label := splitSensorKey(s.SensorKey, names)
		readings, _ := chips.Get(chip)
		chips.Set(chip, append(readings, telemetry.SensorReading{Label: label, Current: s.Temperature}))
	}

	return &telemetry.TemperatureSample{Chips: chips}, nil
}

// splitSensorKey splits "<chip>_<label>" keys using the longest known chip
// name that prefixes key. Both chip names and labels may contain
// underscores, so the key alone is ambiguous. Keys matching no chip, such
// as thermal zone types, are a chip with a single reading.
func splitSensorKey(key string, names []string) (chip, label string) {
	chip, label = key, defaultLabel
	best := -1
	for _, name := range names {
		if len(name) <= best {
			continue
		}
		switch {
		case key == name:
			chip, label, best = name, defaultLabel, len(name)
		case strings.HasPrefix(key, name+"_"):
			chip, label, best = name, key[len(name)+1:], len(name)
		}
	}
	return chip, label
}
