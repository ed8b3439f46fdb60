package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	holdTotal        *prometheus.CounterVec
	bookingTotal     *prometheus.CounterVec
	transitionTotal  *prometheus.CounterVec
	generatedSlots   prometheus.Counter
	bookingLatency   *prometheus.HistogramVec
	rescheduleTotal  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		holdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sproutcare",
			Subsystem: "booking",
			Name:      "slot_hold_total",
			Help:      "Total slot hold attempts",
		}, []string{"outcome"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sproutcare",
			Subsystem: "booking",
			Name:      "booking_total",
			Help:      "Total booking attempts",
		}, []string{"outcome"}),
		transitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sproutcare",
			Subsystem: "booking",
			Name:      "status_transition_total",
			Help:      "Total appointment status transitions",
		}, []string{"from", "to"}),
		generatedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sproutcare",
			Subsystem: "booking",
			Name:      "generated_slots_total",
			Help:      "Total slots created by availability generation",
		}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sproutcare",
			Subsystem: "booking",
			Name:      "booking_latency_seconds",
			Help:      "Latency of the hold-then-commit booking flow",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		rescheduleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sproutcare",
			Subsystem: "booking",
			Name:      "reschedule_total",
			Help:      "Total reschedule attempts",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.holdTotal, m.bookingTotal, m.transitionTotal, m.generatedSlots, m.bookingLatency, m.rescheduleTotal)
	return m
}

func (m *BookingMetrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holdTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveGeneratedSlots(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.generatedSlots.Add(float64(count))
}

func (m *BookingMetrics) ObserveReschedule(outcome string) {
	if m == nil {
		return
	}
	m.rescheduleTotal.WithLabelValues(outcome).Inc()
}
