package obs

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultLatencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// HTTPMetrics holds the collectors fed by HTTPObs.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	Active   prometheus.Gauge
}

// NewHTTPMetrics builds the request collectors under namespace. Collectors
// already present on reg are reused so the router can be built more than once.
func NewHTTPMetrics(namespace string, bucketsMs []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	bounds := slices.Clone(bucketsMs)
	if len(bounds) == 0 {
		bounds = defaultLatencyBucketsMs
	}
	slices.Sort(bounds)

	return &HTTPMetrics{
		Requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by method, route pattern and status.",
		}, []string{"method", "route", "status"})),
		Latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "Time to serve a request in milliseconds.",
			Buckets:   bounds,
		}, []string{"method", "route"})),
		Active: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		})),
	}
}

// ParseBucketsCSV reads histogram bounds such as "5,10,25". Entries that are
// not positive numbers are dropped.
func ParseBucketsCSV(csv string) []float64 {
	var bounds []float64
	for _, field := range strings.Split(csv, ",") {
		bound, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err == nil && bound > 0 {
			bounds = append(bounds, bound)
		}
	}
	return bounds
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return d.Seconds() * 1000
}

// register adds c to reg and returns the collector callers should use: c
// itself, or the equivalent collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		if existing, ok := dup.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(fmt.Errorf("obs: register collector: %w", err))
}
