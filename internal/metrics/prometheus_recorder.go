package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	watchDuration  *prom.HistogramVec
	watchOutcomes  *prom.CounterVec
	polls          prom.Counter
	toolResolution *prom.CounterVec
	activeSessions prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.watchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "withgradle",
			Name:      "watch_duration_seconds",
			Help:      "Time from watch start to verdict or abort",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"})
		pr.watchOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "withgradle",
			Name:      "watch_outcomes_total",
			Help:      "Watch sessions by outcome and failure reason",
		}, []string{"outcome", "reason"})
		pr.polls = prom.NewCounter(prom.CounterOpts{
			Namespace: "withgradle",
			Name:      "log_polls_total",
			Help:      "Log tail reads performed while waiting for a terminal marker",
		})
		pr.toolResolution = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "withgradle",
			Name:      "tool_resolutions_total",
			Help:      "Tool installation lookups by kind and result",
		}, []string{"kind", "result"})
		pr.activeSessions = prom.NewGauge(prom.GaugeOpts{
			Namespace: "withgradle",
			Name:      "active_watch_sessions",
			Help:      "Watch sessions currently waiting for a terminal marker",
		})
		reg.MustRegister(pr.watchDuration, pr.watchOutcomes, pr.polls, pr.toolResolution, pr.activeSessions)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveWatchDuration(d time.Duration, outcome OutcomeLabel) {
	if p == nil || p.watchDuration == nil {
		return
	}
	p.watchDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncWatchOutcome(outcome OutcomeLabel, reason string) {
	if p == nil || p.watchOutcomes == nil {
		return
	}
	p.watchOutcomes.WithLabelValues(string(outcome), reason).Inc()
}

func (p *PrometheusRecorder) AddPolls(n int) {
	if p == nil || p.polls == nil || n <= 0 {
		return
	}
	p.polls.Add(float64(n))
}

func (p *PrometheusRecorder) IncToolResolution(kind string, found bool) {
	if p == nil || p.toolResolution == nil {
		return
	}
	res := "missing"
	if found {
		res = "found"
	}
	p.toolResolution.WithLabelValues(kind, res).Inc()
}

func (p *PrometheusRecorder) SetActiveSessions(n int) {
	if p == nil || p.activeSessions == nil {
		return
	}
	p.activeSessions.Set(float64(n))
}
