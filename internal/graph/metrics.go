package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts evaluation work. A nil *Metrics records nothing, so
// contexts and drivers can carry one unconditionally.
type Metrics struct {
	computes     *prometheus.CounterVec
	passes       *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	rootErrors   *prometheus.CounterVec
}

// NewMetrics creates the engine's collectors and registers them with reg.
// A nil reg leaves them unregistered, which suits tests that read values
// directly.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		computes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pullgraph",
			Name:      "compute_calls_total",
			Help:      "Output compute functions invoked, by vertex kind.",
		}, []string{"kind"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pullgraph",
			Name:      "passes_total",
			Help:      "Evaluation passes run, by pass kind and outcome.",
		}, []string{"pass", "outcome"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pullgraph",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of one evaluation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"pass"}),
		rootErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pullgraph",
			Name:      "root_errors_total",
			Help:      "Root evaluations that failed, by error code.",
		}, []string{"code"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.computes, m.passes, m.passDuration, m.rootErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ComputeCalls exposes the compute counter for kind.
func (m *Metrics) ComputeCalls(kind string) prometheus.Counter {
	return m.computes.WithLabelValues(kind)
}

// Passes exposes the pass counter for one pass kind and outcome.
func (m *Metrics) Passes(pass PassKind, outcome string) prometheus.Counter {
	return m.passes.WithLabelValues(string(pass), outcome)
}

func (m *Metrics) observeCompute(kind string) {
	if m == nil {
		return
	}
	m.computes.WithLabelValues(kind).Inc()
}

func (m *Metrics) observePass(pass PassKind, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.passes.WithLabelValues(string(pass), outcome).Inc()
	m.passDuration.WithLabelValues(string(pass)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRootError(err error) {
	if m == nil {
		return
	}
	code := string(CodeOf(err))
	if code == "" {
		code = "other"
	}
	m.rootErrors.WithLabelValues(code).Inc()
}
