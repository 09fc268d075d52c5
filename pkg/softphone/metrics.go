package softphone

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "registrations_total",
		Help:      "REGISTER outcomes by result (ok, rejected, timeout).",
	}, []string{"result"})

	metricChallenges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "auth_challenges_total",
		Help:      "Digest challenges answered across all request kinds.",
	})

	metricCallsAnswered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "calls_answered_total",
		Help:      "Inbound INVITEs answered with 200 OK.",
	})

	metricOutboundCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "outbound_calls_total",
		Help:      "Originated calls by result (established, rejected, timeout).",
	}, []string{"result"})

	metricMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "malformed_datagrams_total",
		Help:      "Datagrams that did not parse as SIP and were dropped.",
	})

	metricActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "active_calls",
		Help:      "Inbound dialogs currently tracked.",
	})

	metricRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sip",
		Subsystem: "softphone",
		Name:      "registered",
		Help:      "1 while the last REGISTER cycle succeeded, else 0.",
	})
)

const (
	resultOK          = "ok"
	resultRejected    = "rejected"
	resultTimeout     = "timeout"
	resultEstablished = "established"
)
