package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BasketOperationsTotal counts basket commands and queries by outcome.
	BasketOperationsTotal *prometheus.CounterVec
	// DiscountCodeApplyTotal counts discount code applications by outcome.
	DiscountCodeApplyTotal *prometheus.CounterVec
	// StoreLatency records record store call latency in milliseconds.
	StoreLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BasketOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "basket_operations_total",
			Help:      "Count of basket operations by outcome.",
		}, []string{"operation", "result"})
		DiscountCodeApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "basket_discount_codes_total",
			Help:      "Count of discount code applications by outcome.",
		}, []string{"result"})
		StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_ms",
			Help:      "Latency of record store operations in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"driver", "operation"})

		BasketOperationsTotal = register(reg, BasketOperationsTotal)
		DiscountCodeApplyTotal = register(reg, DiscountCodeApplyTotal)
		StoreLatency = register(reg, StoreLatency)
	})
}
