package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets covers fast store reads up to slow gateway round trips.
var latencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
}

var (
	// HTTPRequestDuration tracks the latency of REST requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ValidateCouponDuration tracks the latency of coupon validation
	ValidateCouponDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_coupon_validate_duration_seconds",
			Help:    "Duration of coupon validation in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"status"}, // valid or invalid
	)

	// CouponValidations counts validation outcomes by rejection reason
	CouponValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_coupon_validations_total",
			Help: "Coupon validations by outcome",
		},
		[]string{"reason"},
	)

	// PaymentTransitions counts lead status transitions
	PaymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payment_transitions_total",
			Help: "Lead status transitions performed by payment verification",
		},
		[]string{"status"},
	)

	// GatewayDuration tracks the latency of payment gateway calls
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"operation", "outcome"},
	)

	// Notifications counts email dispatch results
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_notifications_total",
			Help: "Notification dispatches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordHTTPRequest records the duration of an HTTP request
func RecordHTTPRequest(method, route, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration)
}

// RecordValidateCoupon records the duration and reason of a coupon validation
func RecordValidateCoupon(reason string, duration float64) {
	status := "invalid"
	if reason == "valid" {
		status = "valid"
	}
	ValidateCouponDuration.WithLabelValues(status).Observe(duration)
	CouponValidations.WithLabelValues(reason).Inc()
}

// RecordPaymentTransition counts a lead moving to status
func RecordPaymentTransition(status string) {
	PaymentTransitions.WithLabelValues(status).Inc()
}

// RecordGatewayCall records the duration of a payment gateway call
func RecordGatewayCall(operation, outcome string, duration float64) {
	GatewayDuration.WithLabelValues(operation, outcome).Observe(duration)
}

// RecordNotification counts a notification dispatch result
func RecordNotification(kind, outcome string) {
	Notifications.WithLabelValues(kind, outcome).Inc()
}
