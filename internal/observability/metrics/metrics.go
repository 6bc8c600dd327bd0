package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the sync and dispatch pipelines.
type PipelineMetrics struct {
	syncUpserts      prometheus.Counter
	syncCancels      prometheus.Counter
	dispatchTotal    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		syncUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attend",
			Subsystem: "sync",
			Name:      "upserts_total",
			Help:      "Appointments written or merged by schedule sync",
		}),
		syncCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attend",
			Subsystem: "sync",
			Name:      "cancels_total",
			Help:      "Appointments cancelled because they left the upload",
		}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attend",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Per-item push dispatch outcomes",
		}, []string{"status", "strategy"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attend",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration of pipeline runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.syncUpserts, m.syncCancels, m.dispatchTotal, m.pipelineDuration)
	return m
}

func (m *PipelineMetrics) ObserveSync(upserted, cancelled int, seconds float64) {
	if m == nil {
		return
	}
	m.syncUpserts.Add(float64(upserted))
	m.syncCancels.Add(float64(cancelled))
	m.pipelineDuration.WithLabelValues("sync").Observe(seconds)
}

func (m *PipelineMetrics) ObserveDispatch(status, strategy string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(status, strategy).Inc()
}

func (m *PipelineMetrics) ObserveDuration(pipeline string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(pipeline).Observe(seconds)
}
