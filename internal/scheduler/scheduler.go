// Package scheduler drives the collection loop through its three states.
package scheduler

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// State is a phase of the loop. There is no pause state.
type State int

const (
	Initializing State = iota
	Running
	Terminating
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Assembler produces one snapshot per cycle.
type Assembler interface {
	Assemble(ctx context.Context) (*telemetry.Snapshot, error)
}

// Dispatcher delivers a snapshot to every sink and releases them on Close.
type Dispatcher interface {
	Dispatch(ctx context.Context, snap *telemetry.Snapshot) int
	Close() error
}

// Pipeline is what Initializing hands over to Running.
type Pipeline struct {
	Assembler  Assembler
	Dispatcher Dispatcher
}

// InitFunc runs once in Initializing: the environment check and sink
// setup. An error moves the scheduler straight to Terminating.
type InitFunc func(ctx context.Context) (*Pipeline, error)

// Static returns an InitFunc with nothing to set up.
func Static(a Assembler, d Dispatcher) InitFunc {
	return func(context.Context) (*Pipeline, error) {
		return &Pipeline{Assembler: a, Dispatcher: d}, nil
	}
}

// Scheduler runs assemble, dispatch, sleep until its context ends.
type Scheduler struct {
	init     InitFunc
	interval time.Duration
	logger   logger.Logger
	metrics  *Metrics
	after    func(time.Duration) <-chan time.Time

	// OnStateChange is called on every transition, before the new state's
	// work begins.
	OnStateChange func(State)
	// MaxCycles stops the loop after that many cycles; zero runs forever.
	MaxCycles int

	mu    sync.Mutex
	state State
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) { s.logger = log }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithAfter replaces time.After for the sleep between cycles.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) { s.after = after }
}

func New(init InitFunc, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		init:     init,
		interval: interval,
		logger:   logger.Default(),
		metrics:  NewMetrics(),
		after:    time.After,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Metrics returns the loop's self instrumentation.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

func (s *Scheduler) transition(to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()

	s.logger.Debug().Str("state", to.String()).Msg("Scheduler state changed")
	if s.OnStateChange != nil {
		s.OnStateChange(to)
	}
}

// Run executes the state machine. It returns nil when ctx ends, and the
// error that forced Terminating otherwise. The in-flight cycle always
// completes; sinks are closed before Run returns.
//
// The sleep between cycles is a fixed interval after the cycle finishes;
// time spent collecting is not subtracted.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, s.interval.String())
	}

	s.transition(Initializing)

	p, err := s.init(ctx)
	if err != nil {
		s.transition(Terminating)
		return err
	}

	s.transition(Running)
	runErr := s.loop(ctx, p)

	s.transition(Terminating)
	if err := p.Dispatcher.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close sinks")
	}

	return runErr
}

func (s *Scheduler) loop(ctx context.Context, p *Pipeline) error {
	cycleCtx := context.WithoutCancel(ctx)

	for cycles := 0; ; {
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()

		snap, err := p.Assembler.Assemble(cycleCtx)
		if err != nil {
			return errors.New().Wrap(errors.ErrMainLoop, err)
		}

		failed := p.Dispatcher.Dispatch(cycleCtx, snap)

		elapsed := time.Since(start)
		s.metrics.observeCycle(elapsed)
		s.logger.Debug().
			Dur("elapsed", elapsed).
			Int("families", len(snap.Present())).
			Int("failed_sinks", failed).
			Msg("Cycle complete")

		cycles++
		if s.MaxCycles > 0 && cycles >= s.MaxCycles {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(s.interval):
		}
	}
}
