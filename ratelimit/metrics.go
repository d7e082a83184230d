/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Metric label names.
const (
	metricsLabelClass  = "class"
	metricsLabelReason = "reason"
)

// MetricsCollector represents a collector of metrics to analyze how actors hit their limits.
type MetricsCollector interface {
	// IncAdmitted increments the total number of admitted checks for the class.
	IncAdmitted(class string)

	// IncRejected increments the total number of rejected checks for the class and reject reason.
	IncRejected(class string, reason RejectReason)

	// SetTrackedActors sets the number of actors with in-memory state.
	SetTrackedActors(n int)
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

// PrometheusMetrics represents Prometheus metrics for the admission gate.
type PrometheusMetrics struct {
	AdmittedTotal *prometheus.CounterVec
	RejectedTotal *prometheus.CounterVec
	TrackedActors *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	admittedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_admitted_total",
			Help:        "Number of checks admitted by the gate.",
			ConstLabels: opts.ConstLabels,
		},
		append(opts.CurriedLabelNames, metricsLabelClass),
	)

	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_rejected_total",
			Help:        "Number of checks rejected by the gate.",
			ConstLabels: opts.ConstLabels,
		},
		append(opts.CurriedLabelNames, metricsLabelClass, metricsLabelReason),
	)

	trackedActors := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_tracked_actors",
			Help:        "Number of actors with in-memory rate limiting state.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		AdmittedTotal: admittedTotal,
		RejectedTotal: rejectedTotal,
		TrackedActors: trackedActors,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AdmittedTotal: pm.AdmittedTotal.MustCurryWith(labels),
		RejectedTotal: pm.RejectedTotal.MustCurryWith(labels),
		TrackedActors: pm.TrackedActors.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.AdmittedTotal,
		pm.RejectedTotal,
		pm.TrackedActors,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AdmittedTotal)
	prometheus.Unregister(pm.RejectedTotal)
	prometheus.Unregister(pm.TrackedActors)
}

// IncAdmitted increments the total number of admitted checks for the class.
func (pm *PrometheusMetrics) IncAdmitted(class string) {
	pm.AdmittedTotal.With(prometheus.Labels{metricsLabelClass: class}).Inc()
}

// IncRejected increments the total number of rejected checks for the class and reject reason.
func (pm *PrometheusMetrics) IncRejected(class string, reason RejectReason) {
	pm.RejectedTotal.With(prometheus.Labels{metricsLabelClass: class, metricsLabelReason: string(reason)}).Inc()
}

// SetTrackedActors sets the number of actors with in-memory state.
func (pm *PrometheusMetrics) SetTrackedActors(n int) {
	pm.TrackedActors.With(nil).Set(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAdmitted(string)               {}
func (disabledMetrics) IncRejected(string, RejectReason) {}
func (disabledMetrics) SetTrackedActors(int)             {}

var disabledMetricsCollector = disabledMetrics{}
