package metrics

import (
	"testing"

	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	require := require.New(t)

	m, err := New(prometheus.NewRegistry())
	require.NoError(err)

	m.ObserveRoute(types.RouteDirect)
	m.ObserveRoute(types.RouteDirect)
	m.ObserveRoute(types.RouteUnavailable)
	m.ObservePairUpdate()
	m.SetPairs(4)

	require.Equal(2.0, testutil.ToFloat64(m.Routes.WithLabelValues("direct")))
	require.Equal(1.0, testutil.ToFloat64(m.Routes.WithLabelValues("unavailable")))
	require.Equal(1.0, testutil.ToFloat64(m.PairUpdates))
	require.Equal(4.0, testutil.ToFloat64(m.Pairs))
}

func TestDoubleRegistration(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(err)
	_, err = New(reg)
	require.Error(err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRoute(types.RouteBase)
	m.ObservePairUpdate()
	m.SetPairs(1)
}
