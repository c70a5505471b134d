// Package metrics declares the Prometheus collectors shared across packages.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillswap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	swapRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_swap_requests_total",
			Help: "Swap request operations by outcome",
		},
		[]string{"op", "result"},
	)
	events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_events_total",
			Help: "Notification events by type and delivery outcome",
		},
		[]string{"event", "outcome"},
	)
	liveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_live_channels",
		Help: "Currently registered push channels",
	})
)

// HTTP records request duration. The route label uses the chi route
// pattern so ids do not explode cardinality.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// SwapRequest counts a service operation ("submit", "respond") with its
// result label ("ok", "conflict", ...).
func SwapRequest(op, result string) {
	swapRequests.WithLabelValues(op, result).Inc()
}

// Event counts one emit outcome: "delivered", "dropped", "relayed" or "failed".
func Event(event, outcome string) {
	events.WithLabelValues(event, outcome).Inc()
}

// ChannelOpened and ChannelClosed track the live channel gauge.
func ChannelOpened() { liveChannels.Inc() }
func ChannelClosed() { liveChannels.Dec() }
