package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_messages_total",
			Help: "Total number of message events processed, by terminal outcome (count)",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klaxon_evaluation_duration_ms",
			Help:    "Duration of a single decision evaluation in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"outcome"},
	)

	AlertsByRuleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_alerts_by_rule_total",
			Help: "Total number of dispatched alerts, by matched rule type (count)",
		},
		[]string{"rule_type"},
	)

	DuplicateEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_duplicate_events_total",
			Help: "Total number of events dropped by the seen-event cache (count)",
		},
	)

	HistorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "klaxon_history_size",
			Help: "Current number of entries in the alert history buffer (count)",
		},
	)

	StatsFlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_stats_flush_total",
			Help: "Total number of statistics persistence attempts (count)",
		},
		[]string{"status"},
	)

	TransportReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_transport_reconnects_total",
			Help: "Total number of workspace socket reconnects (count)",
		},
	)

	TransportEnvelopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_transport_envelopes_total",
			Help: "Total number of socket envelopes received, by type (count)",
		},
		[]string{"type"},
	)

	ActuatorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_actuator_failures_total",
			Help: "Total number of actuator side-effect failures (count)",
		},
		[]string{"effect"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "klaxon_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_http_rate_limit_requests_total",
			Help: "Total number of dashboard requests checked against the rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(AlertsByRuleTotal)
	prometheus.MustRegister(DuplicateEventsTotal)
	prometheus.MustRegister(HistorySize)
	prometheus.MustRegister(StatsFlushTotal)
}

func RegisterTransportMetrics() {
	prometheus.MustRegister(TransportReconnectsTotal)
	prometheus.MustRegister(TransportEnvelopesTotal)
	prometheus.MustRegister(CircuitBreakerState)
}

func RegisterActuatorMetrics() {
	prometheus.MustRegister(ActuatorFailuresTotal)
}

func RegisterHTTPMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveEvaluationDuration(d time.Duration, outcome string) {
	EvaluationDuration.WithLabelValues(outcome).Observe(float64(d.Microseconds()) / 1000.0)
}

func SetHistorySize(n int) {
	HistorySize.Set(float64(n))
}
