// Package collector assembles one Snapshot per cycle from the enabled
// providers.
package collector

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/provider"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Assembler runs every provider concurrently under one deadline and merges
// whatever succeeded. Providers still running at the deadline are left
// absent and are not called again until their previous call returns, so no
// provider ever has two calls in flight.
type Assembler struct {
	host      *telemetry.HostIdentity
	providers []provider.Provider
	budget    time.Duration
	logger    logger.Logger
	now       func() time.Time

	// OnFailure is called once per failed provider per cycle.
	OnFailure func(name string)

	mu       sync.Mutex
	last     time.Time
	failing  map[string]bool
	inflight map[string]bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithLogger sets the logger used for provider failures.
func WithLogger(log logger.Logger) Option {
	return func(a *Assembler) { a.logger = log }
}

// New returns an Assembler. budget bounds how long Assemble waits for
// providers; zero means no deadline beyond the caller's context.
func New(host *telemetry.HostIdentity, providers []provider.Provider, budget time.Duration, opts ...Option) *Assembler {
	a := &Assembler{
		host:      host,
		providers: providers,
		budget:    budget,
		logger:    logger.Default(),
		now:       time.Now,
		failing:   make(map[string]bool, len(providers)),
		inflight:  make(map[string]bool, len(providers)),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Host returns the identity attached to every snapshot.
func (a *Assembler) Host() *telemetry.HostIdentity {
	return a.host
}

type result struct {
	sample telemetry.Sample
	err    error
}

type outcome struct {
	index int
	result
}

// Assemble captures one snapshot. Provider failures leave their family
// absent; only a missing clock is returned as an error.
func (a *Assembler) Assemble(ctx context.Context) (*telemetry.Snapshot, error) {
	ts, err := a.stamp()
	if err != nil {
		return nil, err
	}

	if a.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.budget)
		defer cancel()
	}

	errFactory := errors.New()
	results := make([]result, len(a.providers))
	pending := make(map[int]bool, len(a.providers))
	// Buffered so abandoned providers can always deliver and exit.
	done := make(chan outcome, len(a.providers))

	for i, p := range a.providers {
		if !a.begin(p.Name()) {
			results[i].err = errFactory.WithMessage(errors.ErrResourceBusy, "previous call has not returned")
			continue
		}
		pending[i] = true
		go func() {
			r := collect(ctx, p)
			a.end(p.Name())
			done <- outcome{index: i, result: r}
		}()
	}

	for len(pending) > 0 {
		select {
		case o := <-done:
			results[o.index] = o.result
			delete(pending, o.index)
		case <-ctx.Done():
			for i := range pending {
				results[i].err = errFactory.Wrap(errors.ErrTimeout, ctx.Err())
				delete(pending, i)
			}
		}
	}

	snap := telemetry.NewSnapshot(a.host, ts)
	for i, p := range a.providers {
		r := results[i]
		if r.err == nil {
			r.err = snap.Set(r.sample)
		}
		if r.err != nil {
			a.failed(p.Name(), r.err)
			continue
		}
		a.recovered(p.Name())
	}

	return snap, nil
}

// begin marks name as running; it reports false if a previous call has not
// returned yet.
func (a *Assembler) begin(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inflight[name] {
		return false
	}
	a.inflight[name] = true
	return true
}

func (a *Assembler) end(name string) {
	a.mu.Lock()
	delete(a.inflight, name)
	a.mu.Unlock()
}

func collect(ctx context.Context, p provider.Provider) (r result) {
	defer func() {
		if v := recover(); v != nil {
			r = result{err: errors.New().WithData(errors.ErrInternal, v).WithMessage("provider panicked")}
		}
	}()

	sample, err := p.Collect(ctx)
	if err == nil && sample == nil {
		err = errors.New().WithMessage(provider.ErrNoData, "provider returned no sample")
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	return result{sample: sample, err: err}
}

// stamp returns a capture time strictly after the previous one.
func (a *Assembler) stamp() (time.Time, error) {
	ts := a.now()
	if ts.IsZero() {
		return time.Time{}, errors.New().WithMessage(errors.ErrNoClock, "clock returned zero time")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !ts.After(a.last) {
		ts = a.last.Add(time.Nanosecond)
	}
	a.last = ts

	return ts, nil
}

func (a *Assembler) failed(name string, err error) {
	if a.OnFailure != nil {
		a.OnFailure(name)
	}

	a.mu.Lock()
	first := !a.failing[name]
	a.failing[name] = true
	a.mu.Unlock()

	if first {
		a.logger.Warn().Err(err).Str("provider", name).Msg("provider unavailable, omitting from snapshots")
		return
	}
	a.logger.Debug().Err(err).Str("provider", name).Msg("provider still failing")
}

func (a *Assembler) recovered(name string) {
	a.mu.Lock()
	was := a.failing[name]
	delete(a.failing, name)
	a.mu.Unlock()

	if was {
		a.logger.Info().Str("provider", name).Msg("provider recovered")
	}
}
