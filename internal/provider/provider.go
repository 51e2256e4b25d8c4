// Package provider holds one query per metric family. Every provider is
// independent: it shares no mutable state with the others and reports
// either a populated sub-sample or an error, never a zero-valued stand-in.
package provider

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

const (
	ErrUnknownProvider = errors.ErrorCode("provider_unknown")
	ErrQueryFailed     = errors.ErrorCode("provider_query_failed")
	ErrNoData          = errors.ErrorCode("provider_no_data")
)

const bytesPerGB = 1024.0 * 1024.0 * 1024.0

// Provider produces one metric family. Collect must return within the
// deadline of ctx; providers that measure over a window say so in their
// documentation.
type Provider interface {
	Name() string
	Collect(ctx context.Context) (telemetry.Sample, error)
}

// GPUSource is the GPU sampler as seen by the gpu provider.
type GPUSource interface {
	Sample() (*telemetry.GPUSample, error)
}

// FromConfig builds the enabled providers in configured order.
func FromConfig(cfg *config.Config, sys System, gpus GPUSource) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Providers))

	for _, name := range cfg.Providers {
		p, err := New(name, cfg, sys, gpus)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	return providers, nil
}

// New builds a single provider by name.
func New(name string, cfg *config.Config, sys System, gpus GPUSource) (Provider, error) {
	switch name {
	case config.ProviderCPU:
		return NewCPU(sys, cfg.CPUWindowDuration()), nil
	case config.ProviderMemory:
		return NewMemory(sys), nil
	case config.ProviderTemperature:
		return NewTemperature(sys), nil
	case config.ProviderGPU:
		return NewGPU(gpus), nil
	case config.ProviderDisk:
		return NewDisk(sys), nil
	case config.ProviderNetwork:
		return NewNetwork(sys), nil
	case config.ProviderProcess:
		return NewProcess(sys), nil
	case config.ProviderLoad:
		return NewLoad(sys), nil
	case config.ProviderUptime:
		return NewUptime(sys), nil
	}

	return nil, errors.New().WithData(ErrUnknownProvider, name)
}

func queryFailed(what string, err error) error {
	return errors.New().Wrap(ErrQueryFailed, err).WithMessage("failed to query " + what)
}
