// Package metrics exposes router and reserve store counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stable_pricer"

type Metrics struct {
	Routes      *prometheus.CounterVec
	PairUpdates prometheus.Counter
	Pairs       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Number of priced tokens by the rule that priced them",
		}, []string{"route"}),
		PairUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_updates_total",
			Help:      "Number of reserve updates applied to the pair memory",
		}),
		Pairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairs",
			Help:      "Number of pairs held in memory",
		}),
	}

	err := errors.Join(
		reg.Register(m.Routes),
		reg.Register(m.PairUpdates),
		reg.Register(m.Pairs),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// The observers below accept a nil receiver so callers can run without metrics.

func (m *Metrics) ObserveRoute(kind types.RouteKind) {
	if m == nil {
		return
	}
	m.Routes.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) ObservePairUpdate() {
	if m == nil {
		return
	}
	m.PairUpdates.Inc()
}

func (m *Metrics) SetPairs(n int) {
	if m == nil {
		return
	}
	m.Pairs.Set(float64(n))
}
