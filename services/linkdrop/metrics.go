package linkdrop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	transitions *prometheus.CounterVec
	deposited   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkdrop",
			Name:      "transitions_total",
			Help:      "State transitions of linkdrop redemptions and provisioning requests.",
		}, []string{"flow", "state"}),
		deposited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "linkdrop",
			Name:      "deposited_amount_total",
			Help:      "Native amount credited to keys, after fees.",
		}),
	}
}

func (m *Metrics) transition(flow Flow, state State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(flow), string(state)).Inc()
}

func (m *Metrics) deposit(amount int64) {
	if m == nil {
		return
	}
	m.deposited.Add(float64(amount))
}
