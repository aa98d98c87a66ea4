package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Refresh(MethodRefreshToken, OutcomeFailure)
	m.Refresh(MethodPassword, OutcomeSuccess)
	m.RefreshWaiter()
	m.RefreshWaiter()
	m.Replay()
	m.Request(OutcomeSuccess)
	m.TerminalFailure()

	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues(MethodRefreshToken, OutcomeFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues(MethodPassword, OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.refreshWaitersTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.replaysTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.terminalFailuresTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Refresh(MethodPassword, OutcomeFailure)
		m.RefreshWaiter()
		m.Request(OutcomeFailure)
		m.Replay()
		m.TerminalFailure()
	})
}
