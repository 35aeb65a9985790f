package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics records vector store round-trips per operation and collection.
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	fallback *prometheus.CounterVec
}

// NewStoreMetrics registers the vector store metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_request_duration_seconds",
		Help:    "Duration of vector store requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "collection"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_request_failures",
		Help: "Failed vector store requests.",
	}, []string{"op", "collection"})
	fallback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_scan_fallbacks",
		Help: "Filtered scrolls degraded to full scans with local filtering.",
	}, []string{"collection"})
	reg.MustRegister(duration, failures, fallback)
	return &StoreMetrics{duration: duration, failures: failures, fallback: fallback}
}

// ObserveRequest records one round-trip to the store.
func (s *StoreMetrics) ObserveRequest(op, collection string, d time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(op), normalizeLabel(collection)).Observe(d.Seconds())
}

// IncFailure counts one failed store request.
func (s *StoreMetrics) IncFailure(op, collection string) {
	if s == nil || s.failures == nil {
		return
	}
	s.failures.WithLabelValues(normalizeLabel(op), normalizeLabel(collection)).Inc()
}

// IncScanFallback counts one degraded full-scan fallback.
func (s *StoreMetrics) IncScanFallback(collection string) {
	if s == nil || s.fallback == nil {
		return
	}
	s.fallback.WithLabelValues(normalizeLabel(collection)).Inc()
}

// FulfillmentMetrics records FEFO fulfillment outcomes.
type FulfillmentMetrics struct {
	outcomes *prometheus.CounterVec
	units    *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_outcomes",
		Help: "Fulfillment results partitioned by full/partial fill.",
	}, []string{"outcome"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_units",
		Help: "Units deducted vs. short per fulfillment.",
	}, []string{"kind"})
	reg.MustRegister(outcomes, units)
	return &FulfillmentMetrics{outcomes: outcomes, units: units}
}

// ObserveResult records one fulfillment result.
func (f *FulfillmentMetrics) ObserveResult(fulfilled, shortfall int) {
	if f == nil || f.outcomes == nil {
		return
	}
	outcome := "full"
	if shortfall > 0 {
		outcome = "partial"
	}
	f.outcomes.WithLabelValues(outcome).Inc()
	f.units.WithLabelValues("fulfilled").Add(float64(fulfilled))
	f.units.WithLabelValues("shortfall").Add(float64(shortfall))
}

// PolicyMetrics records policy evaluation outcomes.
type PolicyMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewPolicyMetrics registers the policy metrics on the provided registerer.
func NewPolicyMetrics(reg prometheus.Registerer) *PolicyMetrics {
	if reg == nil {
		return &PolicyMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_evaluations",
		Help: "Policy evaluation outcomes per event type.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(outcomes)
	return &PolicyMetrics{outcomes: outcomes}
}

// ObserveOutcome counts one evaluation outcome.
func (p *PolicyMetrics) ObserveOutcome(eventType, outcome string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
