// Package metrics provides Prometheus metrics for the chat service
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chat service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter

	// Provider metrics
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	ProviderState        *prometheus.GaugeVec

	// Orchestrator outcomes
	ChatOutcomesTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrilo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrilo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.RateLimitedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mrilo_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	m.ProviderCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrilo_provider_calls_total",
			Help: "Total number of LLM provider calls",
		},
		[]string{"provider", "outcome"},
	)

	m.ProviderCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrilo_provider_call_duration_seconds",
			Help:    "Duration of LLM provider calls in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	m.ProviderState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mrilo_provider_state",
			Help: "Provider state: 0 available, 1 cooling down, 2 disabled",
		},
		[]string{"provider"},
	)

	m.ChatOutcomesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrilo_chat_outcomes_total",
			Help: "Chat requests by how they were answered",
		},
		[]string{"outcome"},
	)

	return m
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRateLimited counts a rejected request
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// ObserveProviderCall records one provider attempt
func (m *Metrics) ObserveProviderCall(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// SetProviderState publishes a provider's breaker state
func (m *Metrics) SetProviderState(provider string, state float64) {
	if m == nil {
		return
	}
	m.ProviderState.WithLabelValues(provider).Set(state)
}

// ObserveChatOutcome counts how a chat request was answered
// (override, language_switch, clarification, provider, unavailable, invalid)
func (m *Metrics) ObserveChatOutcome(outcome string) {
	if m == nil {
		return
	}
	m.ChatOutcomesTotal.WithLabelValues(outcome).Inc()
}
