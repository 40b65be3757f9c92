package scheduler

import "github.com/prometheus/client_golang/prometheus"

// metrics are the scheduler's Prometheus instruments: active-job gauges,
// in-flight unit-of-work gauges, and retry/quota-pause counters. Registered
// at construction against a caller-supplied registerer (nil skips
// registration) so tests can use a private registry instead of the global
// default.
type metrics struct {
	activeJobs       prometheus.Gauge
	inFlightUploads  prometheus.Gauge
	inFlightGenerate prometheus.Gauge
	retriesTotal     *prometheus.CounterVec
	quotaPausesTotal prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subtitlegen_scheduler_active_jobs",
			Help: "Number of jobs currently being driven by the scheduler.",
		}),
		inFlightUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subtitlegen_scheduler_inflight_uploads",
			Help: "Number of segment uploads currently in flight.",
		}),
		inFlightGenerate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subtitlegen_scheduler_inflight_generations",
			Help: "Number of model generation calls currently in flight.",
		}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subtitlegen_scheduler_retries_total",
			Help: "Count of retried units of work, by fault kind.",
		}, []string{"kind"}),
		quotaPausesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subtitlegen_scheduler_quota_pauses_total",
			Help: "Count of quota-induced pauses across all jobs.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.activeJobs, m.inFlightUploads, m.inFlightGenerate, m.retriesTotal, m.quotaPausesTotal)
	}
	return m
}
