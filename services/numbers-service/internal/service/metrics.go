package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. Production registers them on the default registry;
// tests pass a fresh prometheus.NewRegistry() so constructors can run more than once.
type Metrics struct {
	LifecycleEvents    *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec

	SweepDuration  *prometheus.HistogramVec
	SweepProcessed *prometheus.CounterVec
	SweepErrors    *prometheus.CounterVec
	SweepSkipped   *prometheus.CounterVec

	GatewayRequests *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	PaymentCache    *prometheus.CounterVec

	Reservations         prometheus.Counter
	SubscriptionsCreated *prometheus.CounterVec
	ReservationsReleased prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LifecycleEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_lifecycle_events_total",
			Help: "Subscription lifecycle events handled",
		}, []string{"event"}),
		SideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_lifecycle_side_effect_failures_total",
			Help: "Best-effort lifecycle side effects that failed and were discarded",
		}, []string{"event", "effect"}),

		SweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "numbers_scheduler_sweep_duration_seconds",
			Help:    "Duration of scheduler sweeps",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		SweepProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_scheduler_processed_total",
			Help: "Documents processed by scheduler sweeps",
		}, []string{"job"}),
		SweepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_scheduler_errors_total",
			Help: "Scheduler sweeps that ended with an error",
		}, []string{"job"}),
		SweepSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_scheduler_skipped_total",
			Help: "Scheduler ticks skipped because another instance held the lock",
		}, []string{"job"}),

		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_gateway_requests_total",
			Help: "Payment gateway requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		GatewayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "numbers_gateway_request_duration_seconds",
			Help:    "Payment gateway request duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		PaymentCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_payment_cache_lookups_total",
			Help: "Payment verification cache lookups",
		}, []string{"result"}),

		Reservations: factory.NewCounter(prometheus.CounterOpts{
			Name: "numbers_reservations_total",
			Help: "Successful phone number reservations",
		}),
		SubscriptionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "numbers_subscriptions_created_total",
			Help: "Subscriptions created by plan",
		}, []string{"plan"}),
		ReservationsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "numbers_reservations_released_total",
			Help: "Expired reservations released by the scheduler",
		}),
	}
}
