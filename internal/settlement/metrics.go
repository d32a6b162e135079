package settlement

import "github.com/prometheus/client_golang/prometheus"

// Metrics agrupa os coletores do motor de liquidação.
type Metrics struct {
	Settled       *prometheus.CounterVec // result, currency
	Failures      *prometheus.CounterVec // kind, state
	Compensations *prometheus.CounterVec // outcome
	Wagered       *prometheus.CounterVec // currency
	Latency       prometheus.Histogram
}

// NewMetrics cria e registra os coletores em reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dice_bets_settled_total", Help: "apostas liquidadas por resultado",
		}, []string{"result", "currency"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dice_settlement_failures_total", Help: "falhas de liquidação por tipo e estado",
		}, []string{"kind", "state"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dice_compensations_total", Help: "compensações por desfecho",
		}, []string{"outcome"}),
		Wagered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dice_wagered_total", Help: "volume apostado por moeda",
		}, []string{"currency"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dice_settlement_duration_seconds",
			Help:    "latência da liquidação",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	reg.MustRegister(m.Settled, m.Failures, m.Compensations, m.Wagered, m.Latency)
	return m
}
