/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package fallback

import "github.com/prometheus/client_golang/prometheus"

const metricsLabelOrigin = "origin"

// Origins of stale answers reported by MetricsCollector.IncStaleHits.
const (
	// StaleOriginPreferredWindow means the cached value was young enough to skip the remote.
	StaleOriginPreferredWindow = "preferred_window"

	// StaleOriginAfterFailure means the cached value was served because the remote load failed.
	StaleOriginAfterFailure = "after_failure"
)

// MetricsCollector represents a collector of metrics to analyze how a source answers.
type MetricsCollector interface {
	// IncFreshHits increments the total number of fetches answered by a successful remote load.
	IncFreshHits()

	// IncStaleHits increments the total number of fetches answered from cache for the origin.
	IncStaleHits(origin string)

	// IncLoads increments the total number of loader flights.
	IncLoads()

	// IncLoadErrors increments the total number of failed loader flights.
	IncLoadErrors()

	// IncNoData increments the total number of fetches that found neither remote nor cached data.
	IncNoData()

	// IncSnapshotWriteErrors increments the total number of failed snapshot writes.
	IncSnapshotWriteErrors()

	// SetEntries sets the number of in-memory entries.
	SetEntries(n int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for a source.
type PrometheusMetrics struct {
	FreshHitsTotal         *prometheus.CounterVec
	StaleHitsTotal         *prometheus.CounterVec
	LoadsTotal             *prometheus.CounterVec
	LoadErrorsTotal        *prometheus.CounterVec
	NoDataTotal            *prometheus.CounterVec
	SnapshotWriteErrsTotal *prometheus.CounterVec
	Entries                *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	makeCounter := func(name, help string, extraLabels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        name,
				Help:        help,
				ConstLabels: opts.ConstLabels,
			},
			append(opts.CurriedLabelNames, extraLabels...),
		)
	}

	entries := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "fallback_entries",
			Help:        "Number of in-memory entries.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		FreshHitsTotal: makeCounter("fallback_fresh_hits_total",
			"Number of fetches answered by a successful remote load."),
		StaleHitsTotal: makeCounter("fallback_stale_hits_total",
			"Number of fetches answered from cache.", metricsLabelOrigin),
		LoadsTotal: makeCounter("fallback_loads_total",
			"Number of loader flights."),
		LoadErrorsTotal: makeCounter("fallback_load_errors_total",
			"Number of failed loader flights."),
		NoDataTotal: makeCounter("fallback_no_data_total",
			"Number of fetches that found neither remote nor cached data."),
		SnapshotWriteErrsTotal: makeCounter("fallback_snapshot_write_errors_total",
			"Number of failed snapshot writes."),
		Entries: entries,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		FreshHitsTotal:         pm.FreshHitsTotal.MustCurryWith(labels),
		StaleHitsTotal:         pm.StaleHitsTotal.MustCurryWith(labels),
		LoadsTotal:             pm.LoadsTotal.MustCurryWith(labels),
		LoadErrorsTotal:        pm.LoadErrorsTotal.MustCurryWith(labels),
		NoDataTotal:            pm.NoDataTotal.MustCurryWith(labels),
		SnapshotWriteErrsTotal: pm.SnapshotWriteErrsTotal.MustCurryWith(labels),
		Entries:                pm.Entries.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.FreshHitsTotal,
		pm.StaleHitsTotal,
		pm.LoadsTotal,
		pm.LoadErrorsTotal,
		pm.NoDataTotal,
		pm.SnapshotWriteErrsTotal,
		pm.Entries,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.FreshHitsTotal)
	prometheus.Unregister(pm.StaleHitsTotal)
	prometheus.Unregister(pm.LoadsTotal)
	prometheus.Unregister(pm.LoadErrorsTotal)
	prometheus.Unregister(pm.NoDataTotal)
	prometheus.Unregister(pm.SnapshotWriteErrsTotal)
	prometheus.Unregister(pm.Entries)
}

// IncFreshHits increments the total number of fetches answered by a successful remote load.
func (pm *PrometheusMetrics) IncFreshHits() {
	pm.FreshHitsTotal.With(nil).Inc()
}

// IncStaleHits increments the total number of fetches answered from cache for the origin.
func (pm *PrometheusMetrics) IncStaleHits(origin string) {
	pm.StaleHitsTotal.With(prometheus.Labels{metricsLabelOrigin: origin}).Inc()
}

// IncLoads increments the total number of loader flights.
func (pm *PrometheusMetrics) IncLoads() {
	pm.LoadsTotal.With(nil).Inc()
}

// IncLoadErrors increments the total number of failed loader flights.
func (pm *PrometheusMetrics) IncLoadErrors() {
	pm.LoadErrorsTotal.With(nil).Inc()
}

// IncNoData increments the total number of fetches that found neither remote nor cached data.
func (pm *PrometheusMetrics) IncNoData() {
	pm.NoDataTotal.With(nil).Inc()
}

// IncSnapshotWriteErrors increments the total number of failed snapshot writes.
func (pm *PrometheusMetrics) IncSnapshotWriteErrors() {
	pm.SnapshotWriteErrsTotal.With(nil).Inc()
}

// SetEntries sets the number of in-memory entries.
func (pm *PrometheusMetrics) SetEntries(n int) {
	pm.Entries.With(nil).Set(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncFreshHits()           {}
func (disabledMetrics) IncStaleHits(string)     {}
func (disabledMetrics) IncLoads()               {}
func (disabledMetrics) IncLoadErrors()          {}
func (disabledMetrics) IncNoData()              {}
func (disabledMetrics) IncSnapshotWriteErrors() {}
func (disabledMetrics) SetEntries(int)          {}

var disabledMetricsCollector = disabledMetrics{}
