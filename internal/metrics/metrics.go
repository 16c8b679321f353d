// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the promotion service collectors.
type Metrics struct {
	Redemptions     *prometheus.CounterVec
	Assignments     *prometheus.CounterVec
	CodeAllocations *prometheus.CounterVec
	CodeCollisions  prometheus.Counter
	PartnerLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promotion_redemptions_total",
			Help: "Redemption requests by result.",
		}, []string{"result"}),
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promotion_assignments_total",
			Help: "Assignment requests by result.",
		}, []string{"result"}),
		CodeAllocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promotion_code_allocations_total",
			Help: "Short-code allocations by result.",
		}, []string{"result"}),
		CodeCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promotion_code_collisions_total",
			Help: "Short-code candidates rejected because the code was already bound.",
		}),
		PartnerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promotion_partner_request_duration_seconds",
			Help:    "Latency of partner redemption calls by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Redemptions, m.Assignments, m.CodeAllocations, m.CodeCollisions, m.PartnerLatency)
	}
	return m
}

// Nop returns unregistered collectors.
func Nop() *Metrics { return New(nil) }

// ObserveRedemption counts one redemption outcome.
func (m *Metrics) ObserveRedemption(result string) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(result).Inc()
}

// ObserveAssignment counts one assignment outcome.
func (m *Metrics) ObserveAssignment(result string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(result).Inc()
}

// ObserveAllocation counts one code allocation outcome and the collisions it hit.
func (m *Metrics) ObserveAllocation(result string, collisions int) {
	if m == nil {
		return
	}
	m.CodeAllocations.WithLabelValues(result).Inc()
	if collisions > 0 {
		m.CodeCollisions.Add(float64(collisions))
	}
}

// ObservePartner records the latency of one partner call.
func (m *Metrics) ObservePartner(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PartnerLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
