package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	publishTotal    *prometheus.CounterVec
	handoffTotal    *prometheus.CounterVec
	gatewayLatency  prometheus.Observer
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	publishTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_publish_attempts_total",
		Help: "Publish attempts partitioned by outcome",
	}, []string{"outcome"})

	handoffTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "service_fee_handoffs_total",
		Help: "Service fee payment handoffs partitioned by final state",
	}, []string{"state", "reason"})

	gatewayLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, publishTotal, handoffTotal, gatewayLatency, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		publishTotal:    publishTotal,
		handoffTotal:    handoffTotal,
		gatewayLatency:  gatewayLatency,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordPublishAttempt counts one publish attempt by outcome
// ("published", "blocked", "fee_required").
func (m *MetricsService) RecordPublishAttempt(outcome string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(outcome).Inc()
}

// RecordHandoff counts a finished payment handoff. Reason is empty for
// successful ones.
func (m *MetricsService) RecordHandoff(state, reason string) {
	if m == nil {
		return
	}
	m.handoffTotal.WithLabelValues(state, reason).Inc()
}

// ObserveGatewayCall tracks payment gateway round trip time.
func (m *MetricsService) ObserveGatewayCall(duration time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.Observe(duration.Seconds())
}
