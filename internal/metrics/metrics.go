// Package metrics registers the notifier's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeEnqueued = "enqueued"
)

var (
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_notifications_created_total",
		Help: "Notifications persisted, by type.",
	}, []string{"type"})

	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_persistence_failures_total",
		Help: "Notification inserts that failed.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_deliveries_total",
		Help: "Secondary channel delivery attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notifier_realtime_connections",
		Help: "Open websocket connections on this instance.",
	})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notifier_dispatch_duration_seconds",
		Help:    "Time to fan out one dispatch to its audience.",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_http_requests_total",
		Help: "HTTP requests, by route and status.",
	}, []string{"method", "route", "status"})
)

// RecordDelivery counts one channel attempt.
func RecordDelivery(channel, outcome string) {
	Deliveries.WithLabelValues(channel, outcome).Inc()
}

// StartDispatchTimer returns a timer observed into DispatchDuration.
func StartDispatchTimer() *prometheus.Timer {
	return prometheus.NewTimer(DispatchDuration)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware counts requests by matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
