package lending

import "github.com/prometheus/client_golang/prometheus"

// Metrics は貸出・返却の業務カウンタ
type Metrics struct {
	issues    prometheus.Counter
	returns   prometheus.Counter
	conflicts *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		issues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_issues_total",
			Help: "Books issued to students.",
		}),
		returns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_returns_total",
			Help: "Books returned by students.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_lending_conflicts_total",
			Help: "Issue/return requests rejected by a business rule.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.issues, m.returns, m.conflicts)
	return m
}
