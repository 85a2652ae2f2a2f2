// Package telemetry registers the process Prometheus metrics and the
// request middleware.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActivitiesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatmux_activities_received_total",
		Help: "Inbound webhook activities accepted into the queue, by activity type.",
	}, []string{"type"})

	ActivitiesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatmux_activities_dropped_total",
		Help: "Webhook activities rejected because the ingest queue was full.",
	})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatmux_classifications_total",
		Help: "Classification outcomes, by kind.",
	}, []string{"kind"})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatmux_events_emitted_total",
		Help: "Normalized events handed to the emitter, by event name.",
	}, []string{"name"})

	EmitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatmux_emit_failures_total",
		Help: "Event deliveries that returned an error.",
	})

	DispatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatmux_dispatch_errors_total",
		Help: "Activities whose dispatch failed fatally (store or registry error).",
	})

	OutboundCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatmux_outbound_calls_total",
		Help: "Outbound platform REST calls, by operation and result.",
	}, []string{"op", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatmux_http_request_duration_seconds",
		Help:    "HTTP request latency by path and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "status"})
)

// RegisterQueueDepth exposes the ingest queue depth as a gauge.
func RegisterQueueDepth(depth func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatmux_ingest_queue_depth",
		Help: "Current number of queued webhook activities.",
	}, func() float64 { return float64(depth()) })
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency and status for every handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		requestDuration.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}
