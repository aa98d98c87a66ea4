package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sessionguard"

// Refresh methods and outcomes used as label values.
const (
	MethodRefreshToken = "refresh_token"
	MethodPassword     = "password"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the session guard collectors. A nil *Metrics records nothing.
type Metrics struct {
	refreshTotal          *prometheus.CounterVec
	refreshWaitersTotal   prometheus.Counter
	requestsTotal         *prometheus.CounterVec
	replaysTotal          prometheus.Counter
	terminalFailuresTotal prometheus.Counter
}

// New registers the collectors with the given registerer (prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Token exchanges attempted by the token service",
		}, []string{"method", "outcome"}),

		refreshWaitersTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_waiters_total",
			Help:      "Callers that waited on an in-flight refresh instead of starting one",
		}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Guarded backend requests by outcome",
		}, []string{"outcome"}),

		replaysTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replays_total",
			Help:      "Requests replayed after a 401 and a forced refresh",
		}),

		terminalFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminal_auth_failures_total",
			Help:      "Authentication failures that cleared the session and redirected to login",
		}),
	}
}

func (m *Metrics) Refresh(method, outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) RefreshWaiter() {
	if m == nil {
		return
	}
	m.refreshWaitersTotal.Inc()
}

func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Replay() {
	if m == nil {
		return
	}
	m.replaysTotal.Inc()
}

func (m *Metrics) TerminalFailure() {
	if m == nil {
		return
	}
	m.terminalFailuresTotal.Inc()
}
