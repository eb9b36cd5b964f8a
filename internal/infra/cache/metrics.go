package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts lookaside outcomes per cache name.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	errors *prometheus.CounterVec
}

// NewMetrics registers the cache counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procstatus",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Lookaside reads served from cache.",
		}, []string{"cache"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procstatus",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Lookaside reads that invoked the loader.",
		}, []string{"cache"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procstatus",
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Backend failures; the read fell through to the loader.",
		}, []string{"cache"}),
	}
	reg.MustRegister(m.hits, m.misses, m.errors)
	return m
}

func (m *Metrics) hit(name string) {
	if m != nil {
		m.hits.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) miss(name string) {
	if m != nil {
		m.misses.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) fail(name string) {
	if m != nil {
		m.errors.WithLabelValues(name).Inc()
	}
}
