package lifecycle

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts tier transitions.
type Metrics struct {
	Promotions *prometheus.CounterVec
	Demotions  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpswap",
			Subsystem: "lifecycle",
			Name:      "promotions_total",
			Help:      "Cold to hot promotions by result.",
		}, []string{"result"}),
		Demotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cpswap",
			Subsystem: "lifecycle",
			Name:      "demotions_total",
			Help:      "Hot records demoted to cold storage.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Promotions, m.Demotions)
	}
	return m
}
