package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSessionTotal counts vendor checkout-session attempts by flow and outcome.
	CheckoutSessionTotal *prometheus.CounterVec
	// CodeRegistrationTotal counts admin code registrations by outcome.
	CodeRegistrationTotal *prometheus.CounterVec
	// CodeUsageUpdateFailures counts best-effort usage telemetry writes that failed.
	CodeUsageUpdateFailures prometheus.Counter
	// VendorCallLatency records checkout-session call latency in milliseconds.
	VendorCallLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Count of vendor checkout-session attempts by flow and result.",
		}, []string{"flow", "result"})
		CodeRegistrationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_registrations_total",
			Help:      "Count of admin code registrations by result.",
		}, []string{"result"})
		CodeUsageUpdateFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_usage_update_failures_total",
			Help:      "Count of failed best-effort usage counter updates.",
		})
		VendorCallLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vendor_call_duration_ms",
			Help:      "Latency of vendor checkout-session calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})

		reg.MustRegister(CheckoutSessionTotal, CodeRegistrationTotal, CodeUsageUpdateFailures, VendorCallLatency)
	})
}
