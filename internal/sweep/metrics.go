package sweep

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks sweeper progress.
type Metrics struct {
	Demoted    prometheus.Counter
	Reclaimed  prometheus.Counter
	Skipped    *prometheus.CounterVec
	Checkpoint prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Demoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cpswap",
			Subsystem: "sweep",
			Name:      "demoted_total",
			Help:      "Records demoted by the sweeper.",
		}),
		Reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cpswap",
			Subsystem: "sweep",
			Name:      "reclaimed_rent_total",
			Help:      "Rent lamports credited by sweeper demotions.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpswap",
			Subsystem: "sweep",
			Name:      "skipped_total",
			Help:      "Listed records left hot, by reason.",
		}, []string{"reason"}),
		Checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cpswap",
			Subsystem: "sweep",
			Name:      "checkpoint_slot",
			Help:      "Last slot the sweeper has processed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Demoted, m.Reclaimed, m.Skipped, m.Checkpoint)
	}
	return m
}
