package sink

import (
	"context"
	"io"
	"sync"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/render"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Console prints a compact view of each snapshot.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewConsole writes to w. verbose adds the capture time to each record.
func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose}
}

func (*Console) Name() string { return "console" }

// PrintHost writes the startup identity block.
func (c *Console) PrintHost(h *telemetry.HostIdentity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.w, render.HostInfo(h)); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	return nil
}

func (c *Console) Consume(ctx context.Context, snap *telemetry.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := render.Snapshot(snap, render.Options{Timestamp: c.verbose})
	if _, err := io.WriteString(c.w, out); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	return nil
}

func (*Console) Close() error { return nil }
