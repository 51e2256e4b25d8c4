// Package sink delivers snapshots to the console, the log file and the
// remote metrics endpoint.
package sink

import (
	"context"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

const (
	ErrWriteFailed = errors.ErrorCode("sink_write_failed")
	ErrPushFailed  = errors.ErrorCode("sink_push_failed")
	ErrTimedOut    = errors.ErrorCode("sink_timed_out")
)

// Sink consumes snapshots. Consume must honour ctx; Close flushes and
// releases whatever the sink holds.
type Sink interface {
	Name() string
	Consume(ctx context.Context, snap *telemetry.Snapshot) error
	Close() error
}

// Dispatcher hands every snapshot to each sink in order. A failing sink is
// logged and skipped for the cycle; it never stops the others.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  logger.Logger

	// OnFailure is called for every failed delivery.
	OnFailure func(name string)
}

// NewDispatcher returns a Dispatcher over sinks. timeout bounds each
// Consume call; zero disables the bound.
func NewDispatcher(timeout time.Duration, log logger.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: timeout, logger: log}
}

// Sinks returns the sinks in dispatch order.
func (d *Dispatcher) Sinks() []Sink {
	return d.sinks
}

// Dispatch delivers snap to every sink and returns how many failed.
func (d *Dispatcher) Dispatch(ctx context.Context, snap *telemetry.Snapshot) int {
	failed := 0

	for _, s := range d.sinks {
		if err := d.consume(ctx, s, snap); err != nil {
			failed++
			if d.OnFailure != nil {
				d.OnFailure(s.Name())
			}
			d.logger.Error().Err(err).Str("sink", s.Name()).Msg("sink failed, skipping for this cycle")
		}
	}

	return failed
}

func (d *Dispatcher) consume(ctx context.Context, s Sink, snap *telemetry.Snapshot) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := s.Consume(ctx, snap)
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.New().WithData(ErrTimedOut, d.timeout.String())
	}

	return err
}

// Close closes every sink, returning all errors joined.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Nop is a sink that accepts and discards every snapshot.
type Nop struct {
	name string
}

func NewNop(name string) *Nop { return &Nop{name: name} }

func (n *Nop) Name() string                                     { return n.name }
func (*Nop) Consume(context.Context, *telemetry.Snapshot) error { return nil }
func (*Nop) Close() error                                       { return nil }
