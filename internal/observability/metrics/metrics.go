package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking core.
type BookingMetrics struct {
	reservationsTotal   *prometheus.CounterVec
	verificationsTotal  *prometheus.CounterVec
	postPaymentConflict prometheus.Counter
	gatewayLatency      *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "reservations_total",
			Help:      "Reservation attempts by entry flow and outcome",
		}, []string{"entry", "outcome"}),
		verificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "payment_verifications_total",
			Help:      "Payment callback signature checks by outcome",
		}, []string{"outcome"}),
		postPaymentConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "post_payment_conflicts_total",
			Help:      "Verified payments whose slot was lost and need a refund",
		}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservationsTotal, m.verificationsTotal, m.postPaymentConflict, m.gatewayLatency)
	return m
}

func (m *BookingMetrics) ObserveReservation(entry, outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(entry, outcome).Inc()
}

func (m *BookingMetrics) ObserveVerification(valid bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if valid {
		outcome = "verified"
	}
	m.verificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObservePostPaymentConflict() {
	if m == nil {
		return
	}
	m.postPaymentConflict.Inc()
}

func (m *BookingMetrics) ObserveGateway(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}
