// Package metrics exposes DomainGuard's Prometheus instrumentation.
// Collectors are registered on the default registry; the management API
// serves them at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainguard_decisions_total",
			Help: "Total filtering decisions by action",
		},
		[]string{"action"},
	)
	blockedDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "domainguard_blocklist_domains",
			Help: "Distinct domains currently in the aggregated blocklist",
		},
	)
	activeSources = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "domainguard_sources_active",
			Help: "Enabled blocklist sources",
		},
	)
	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domainguard_refresh_duration_seconds",
			Help:    "Blocklist source refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	refreshFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainguard_refresh_failures_total",
			Help: "Total blocklist source refresh failures",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(decisions, blockedDomains, activeSources, refreshDuration, refreshFailures)
}

// RecordDecision counts one filtering decision.
func RecordDecision(action string) {
	decisions.WithLabelValues(action).Inc()
}

// SetBlockedDomains updates the aggregated blocklist size gauge.
func SetBlockedDomains(n int) {
	blockedDomains.Set(float64(n))
}

// SetActiveSources updates the enabled-sources gauge.
func SetActiveSources(n int) {
	activeSources.Set(float64(n))
}

// ObserveRefresh records a successful source refresh.
func ObserveRefresh(source string, d time.Duration) {
	refreshDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordRefreshFailure counts a failed source refresh.
func RecordRefreshFailure(source string) {
	refreshFailures.WithLabelValues(source).Inc()
}
