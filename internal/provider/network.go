package provider

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Network reports IO counters summed over all interfaces.
type Network struct {
	sys System
}

func NewNetwork(sys System) *Network {
	return &Network{sys: sys}
}

func (*Network) Name() string { return "network" }

func (n *Network) Collect(ctx context.Context) (telemetry.Sample, error) {
	counters, err := n.sys.NetIOCounters(ctx, false)
	if err != nil {
		return nil, queryFailed("network counters", err)
	}
	if len(counters) == 0 {
		return nil, errors.New().WithMessage(ErrNoData, "no network counters reported")
	}

	c := counters[0]
	return &telemetry.NetworkSample{
		BytesSent:   c.BytesSent,
		BytesRecv:   c.BytesRecv,
		PacketsSent: c.PacketsSent,
		PacketsRecv: c.PacketsRecv,
		Errin:       c.Errin,
		Errout:      c.Errout,
		Dropin:      c.Dropin,
		Dropout:     c.Dropout,
	}, nil
}
