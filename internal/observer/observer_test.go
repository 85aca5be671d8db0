package observer

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	name  string
	count int32
}

func (c *countingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	atomic.AddInt32(&c.count, 1)
}

func (c *countingObserver) GetObserverName() string { return c.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                         { return "panicking" }

// counterValue sums every sample of the named family that carries labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestEventPublisher_DeliversToAllObservers(t *testing.T) {
	p := NewEventPublisher()
	a := &countingObserver{name: "a"}
	b := &countingObserver{name: "b"}
	p.Subscribe(a)
	p.Subscribe(b)
	p.Subscribe(panickingObserver{})

	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})
	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisCompleted})
	p.Wait()

	assert.EqualValues(t, 2, atomic.LoadInt32(&a.count))
	assert.EqualValues(t, 2, atomic.LoadInt32(&b.count))

	p.Unsubscribe(a)
	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisFailed})
	p.Wait()

	assert.EqualValues(t, 2, atomic.LoadInt32(&a.count))
	assert.EqualValues(t, 3, atomic.LoadInt32(&b.count))
}

func TestEventPublisher_DetachesCancellation(t *testing.T) {
	p := NewEventPublisher()
	done := make(chan error, 1)
	p.Subscribe(ctxObserver(func(ctx context.Context) { done <- ctx.Err() }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisFailed})
	p.Wait()

	assert.NoError(t, <-done)
}

type ctxObserver func(ctx context.Context)

func (f ctxObserver) OnEvent(ctx context.Context, event AnalysisEvent) { f(ctx) }
func (f ctxObserver) GetObserverName() string                         { return "ctx" }

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver(reg)
	require.NoError(t, err)

	ctx := context.Background()
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, Profile: "default", Level: "good", ProcessingTime: 20 * time.Millisecond})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, Profile: "default", Level: "good", ProcessingTime: 30 * time.Millisecond})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, Profile: "bulk", Level: "poor"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisFailed, ErrorKind: "analysis_timeout"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: BatchCompleted})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted})

	assert.Equal(t, 2.0, counterValue(t, reg, "inspector_analyses_total", map[string]string{"profile": "default", "level": "good"}))
	assert.Equal(t, 3.0, counterValue(t, reg, "inspector_analyses_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "inspector_analysis_failures_total", map[string]string{"kind": "analysis_timeout"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "inspector_analysis_duration_seconds", map[string]string{"profile": "default"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "inspector_batches_total", nil))

	_, err = NewPrometheusObserver(reg)
	assert.Error(t, err, "registering twice should fail")
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), AnalysisEvent{
		EventType:    AnalysisFailed,
		Source:       "a.gif",
		ErrorKind:    "unsupported_format",
		ErrorMessage: "format gif is not supported",
	})

	out := buf.String()
	assert.Contains(t, out, `"error_kind":"unsupported_format"`)
	assert.Contains(t, out, `"source":"a.gif"`)
	assert.Contains(t, out, "Image analysis failed")
}
