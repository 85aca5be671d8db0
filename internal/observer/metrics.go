package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver turns analysis events into Prometheus series.
type PrometheusObserver struct {
	analyses *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	batches  prometheus.Counter
}

// NewPrometheusObserver registers the inspector metrics on reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_analyses_total",
			Help: "Completed image analyses by profile and overall level.",
		}, []string{"profile", "level"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_analysis_failures_total",
			Help: "Failed image analyses by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inspector_analysis_duration_seconds",
			Help:    "Wall time of completed analyses.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"profile"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspector_batches_total",
			Help: "Completed batches.",
		}),
	}

	for _, c := range []prometheus.Collector{o.analyses, o.failures, o.duration, o.batches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	switch event.EventType {
	case AnalysisCompleted:
		o.analyses.WithLabelValues(event.Profile, event.Level).Inc()
		o.duration.WithLabelValues(event.Profile).Observe(event.ProcessingTime.Seconds())
	case AnalysisFailed:
		o.failures.WithLabelValues(event.ErrorKind).Inc()
	case BatchCompleted:
		o.batches.Inc()
	}
}

func (o *PrometheusObserver) GetObserverName() string {
	return "prometheus_observer"
}
