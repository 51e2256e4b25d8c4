package sink

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/runstate"
	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Remote pushes every snapshot's flattened metrics to a Prometheus
// Pushgateway, grouped by host and run. Each push replaces the previous
// one, so families absent from a snapshot disappear from the gateway.
type Remote struct {
	mu       sync.Mutex
	pusher   *push.Pusher
	registry *prometheus.Registry
	values   *prometheus.GaugeVec
	step     prometheus.Gauge
	captured prometheus.Gauge
	store    runstate.Store
	run      *runstate.Run
	steps    int64
	logger   logger.Logger
}

// RemoteOption configures a Remote sink.
type RemoteOption func(*remoteOptions)

type remoteOptions struct {
	client    push.HTTPDoer
	gatherers []prometheus.Gatherer
}

// WithHTTPClient replaces the HTTP client used for pushes.
func WithHTTPClient(c push.HTTPDoer) RemoteOption {
	return func(o *remoteOptions) { o.client = c }
}

// WithGatherer pushes the metrics of g alongside every snapshot.
func WithGatherer(g prometheus.Gatherer) RemoteOption {
	return func(o *remoteOptions) { o.gatherers = append(o.gatherers, g) }
}

// RunKey identifies the stored run for a host reporting into a project.
func RunKey(cfg config.Remote, host *telemetry.HostIdentity) string {
	return strings.Join([]string{cfg.Entity, cfg.Project, host.Nodename}, "/")
}

// NewRemote resolves the run to report into and prepares the pusher. It
// runs once at startup; any failure is fatal.
func NewRemote(
	ctx context.Context, cfg config.Remote, host *telemetry.HostIdentity,
	store runstate.Store, log logger.Logger, opts ...RemoteOption,
) (*Remote, error) {
	o := &remoteOptions{}
	for _, opt := range opts {
		opt(o)
	}

	run, err := store.Resolve(ctx, RunKey(cfg, host), cfg.Resume, cfg.RunName, cfg.Notes)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInitSinks, err).WithMessage("failed to resolve remote run")
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Remote{
		registry: reg,
		values: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sysmon_metric",
			Help: "Latest value of a host metric, keyed <family>/<field>.",
		}, []string{"key"}),
		step: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sysmon_step",
			Help: "Number of snapshots reported in this run.",
		}),
		captured: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sysmon_snapshot_timestamp_seconds",
			Help: "Capture time of the last reported snapshot.",
		}),
		store:  store,
		run:    run,
		steps:  run.Step,
		logger: log,
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "sysmon_run_info",
		Help: "Run metadata.",
		ConstLabels: prometheus.Labels{
			"run_name": run.Name,
			"notes":    run.Notes,
		},
	}).Set(1)

	pusher := push.New(cfg.URL, cfg.Job).
		Gatherer(reg).
		Grouping("instance", host.Nodename).
		Grouping("project", cfg.Project).
		Grouping("run_id", run.ID)
	if cfg.Entity != "" {
		pusher = pusher.Grouping("entity", cfg.Entity)
	}
	if cfg.Username != "" {
		pusher = pusher.BasicAuth(cfg.Username, cfg.Password)
	}
	if o.client != nil {
		pusher = pusher.Client(o.client)
	}
	for _, g := range o.gatherers {
		pusher = pusher.Gatherer(g)
	}
	r.pusher = pusher

	log.Info().
		Str("url", cfg.URL).
		Str("project", cfg.Project).
		Str("run_id", run.ID).
		Bool("resumed", run.Resumed).
		Msg("Remote reporting enabled")

	return r, nil
}

func (*Remote) Name() string { return "remote" }

// Run returns the run this sink reports into.
func (r *Remote) Run() *runstate.Run { return r.run }

// Gatherer exposes the values staged for the next push.
func (r *Remote) Gatherer() prometheus.Gatherer { return r.registry }

func (r *Remote) Consume(ctx context.Context, snap *telemetry.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values.Reset()
	for _, m := range telemetry.Flatten(snap) {
		r.values.WithLabelValues(m.Key).Set(m.Value)
	}
	r.captured.Set(float64(snap.Timestamp.UnixNano()) / 1e9)

	step, err := r.store.Advance(ctx, r.run.ID)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Failed to persist run step, continuing with local counter")
		step = r.steps + 1
	}
	r.steps = step
	r.step.Set(float64(step))

	if err := r.pusher.PushContext(ctx); err != nil {
		return errors.New().Wrap(ErrPushFailed, err)
	}

	return nil
}

func (r *Remote) Close() error {
	return r.store.Close()
}
