package launcher

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector with Prometheus metrics.
type PrometheusMetricsCollector struct {
	admissions      *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	inFlight        prometheus.Gauge
	requestDuration *prometheus.HistogramVec
	waitDuration    prometheus.Histogram
	restarts        *prometheus.CounterVec
	workerUp        *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector registers the launcher metrics on a fresh registry.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "facegroupd"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "admissions_total",
			Help:      "Requests handled by the admission layer, by outcome",
		},
		[]string{"outcome"},
	)

	pmc.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "queue_depth",
			Help:      "Requests waiting for a worker slot",
		},
	)

	pmc.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "in_flight",
			Help:      "Requests currently holding a worker slot",
		},
	)

	pmc.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "request_duration_seconds",
			Help:      "Time requests spent holding a worker slot",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		},
		[]string{"worker"},
	)

	pmc.waitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "wait_duration_seconds",
			Help:      "Time requests spent queued for a worker slot",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pmc.restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "worker_restarts_total",
			Help:      "Worker respawns, by reason",
		},
		[]string{"worker", "reason"},
	)

	pmc.workerUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "worker_ready",
			Help:      "1 when the worker accepts work",
		},
		[]string{"worker"},
	)

	pmc.registry.MustRegister(
		pmc.admissions,
		pmc.queueDepth,
		pmc.inFlight,
		pmc.requestDuration,
		pmc.waitDuration,
		pmc.restarts,
		pmc.workerUp,
	)

	return pmc
}

// Registry returns the registry holding the launcher metrics.
func (p *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetricsCollector) Admission(outcome string) {
	p.admissions.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetricsCollector) QueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

func (p *PrometheusMetricsCollector) InFlight(n int) {
	p.inFlight.Set(float64(n))
}

func (p *PrometheusMetricsCollector) RequestDuration(workerID int, duration time.Duration) {
	p.requestDuration.WithLabelValues(strconv.Itoa(workerID)).Observe(duration.Seconds())
}

func (p *PrometheusMetricsCollector) WaitDuration(duration time.Duration) {
	p.waitDuration.Observe(duration.Seconds())
}

func (p *PrometheusMetricsCollector) WorkerRestart(workerID int, reason string) {
	p.restarts.WithLabelValues(strconv.Itoa(workerID), reason).Inc()
}

func (p *PrometheusMetricsCollector) WorkerState(workerID int, state WorkerState) {
	value := 0.0
	if state == WorkerStateReady {
		value = 1
	}
	p.workerUp.WithLabelValues(strconv.Itoa(workerID)).Set(value)
}
