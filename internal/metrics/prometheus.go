package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder using Prometheus metrics registered on a
// private registry.
type Prometheus struct {
	portsLeased     *prometheus.GaugeVec
	portsExhausted  *prometheus.CounterVec
	memoExecutions  *prometheus.CounterVec
	memoHits        *prometheus.CounterVec
	processStarts   *prometheus.CounterVec
	snapshotSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates a Prometheus recorder. An empty namespace defaults
// to "testcoord".
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "testcoord"
	}

	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.portsLeased = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ports_leased",
			Help:      "Number of ports currently leased per pool",
		},
		[]string{"pool"},
	)
	p.portsExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_lease_exhausted_total",
			Help:      "Total number of lease requests that found no free port",
		},
		[]string{"pool"},
	)
	p.memoExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_executions_total",
			Help:      "Total number of memoized operation executions",
		},
		[]string{"registry", "status"},
	)
	p.memoHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_hits_total",
			Help:      "Total number of calls answered from a completed cell",
		},
		[]string{"registry"},
	)
	p.processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_starts_total",
			Help:      "Total number of managed process launches by outcome",
		},
		[]string{"name", "outcome"},
	)
	p.snapshotSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of snapshot creation attempts",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)

	p.registry.MustRegister(
		p.portsLeased,
		p.portsExhausted,
		p.memoExecutions,
		p.memoHits,
		p.processStarts,
		p.snapshotSeconds,
	)

	return p
}

// Registry returns the registry the metrics are registered on.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) PortLeased(pool string, leased int) {
	p.portsLeased.WithLabelValues(pool).Set(float64(leased))
}

func (p *Prometheus) PortLeaseExhausted(pool string) {
	p.portsExhausted.WithLabelValues(pool).Inc()
}

func (p *Prometheus) MemoExecuted(registry string, err error) {
	p.memoExecutions.WithLabelValues(registry, status(err)).Inc()
}

func (p *Prometheus) MemoHit(registry string) {
	p.memoHits.WithLabelValues(registry).Inc()
}

func (p *Prometheus) ProcessStarted(name, outcome string) {
	p.processStarts.WithLabelValues(name, outcome).Inc()
}

func (p *Prometheus) SnapshotCreated(d time.Duration, err error) {
	p.snapshotSeconds.WithLabelValues(status(err)).Observe(d.Seconds())
}
