package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the loop itself. It owns its registry so several
// schedulers (and tests) never share collectors.
type Metrics struct {
	Registry *prometheus.Registry

	cycles           prometheus.Counter
	cycleDuration    prometheus.Histogram
	providerFailures *prometheus.CounterVec
	sinkFailures     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "sysmon_cycles_total",
			Help: "Completed collection cycles",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sysmon_cycle_duration_seconds",
			Help:    "Time spent assembling and dispatching one snapshot",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		providerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sysmon_provider_failures_total",
			Help: "Provider calls that left their family absent",
		}, []string{"provider"}),
		sinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sysmon_sink_failures_total",
			Help: "Snapshots a sink failed to consume",
		}, []string{"sink"}),
	}
}

// ProviderFailed counts one failed provider call.
func (m *Metrics) ProviderFailed(name string) {
	m.providerFailures.WithLabelValues(name).Inc()
}

// SinkFailed counts one failed delivery.
func (m *Metrics) SinkFailed(name string) {
	m.sinkFailures.WithLabelValues(name).Inc()
}

func (m *Metrics) observeCycle(d time.Duration) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}
