package provider

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// GPU reports every accelerator the GPU source enumerates. NVML calls take
// no context, so a hung driver call is only bounded by the assembler, which
// stops waiting at its deadline and skips the provider until the call
// returns.
type GPU struct {
	source GPUSource
}

func NewGPU(source GPUSource) *GPU {
	return &GPU{source: source}
}

func (*GPU) Name() string { return "gpu" }

func (g *GPU) Collect(ctx context.Context) (telemetry.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample, err := g.source.Sample()
	if err != nil {
		return nil, err
	}

	return sample, nil
}
