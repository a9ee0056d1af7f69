package figcn

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	metricRewrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "figcn_rewrites_total",
			Help: "Total number of requests whose target was rewritten",
		},
	)
	metricRulesLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "figcn_rules_loaded",
			Help: "Number of rules in the active rule set",
		},
	)
	metricRulesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "figcn_rules_rejected_total",
			Help: "Total number of rule entries discarded while loading",
		},
	)
	metricFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "figcn_rule_fallbacks_total",
			Help: "Total number of loads that fell back to the built-in rules",
		},
		[]string{"reason"},
	)
	metricEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "figcn_evaluation_duration_seconds",
			Help:    "Time spent deciding whether to rewrite a request",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 8),
		},
	)
)

// InitMetrics registers Prometheus metrics
func InitMetrics() {
	prometheus.MustRegister(metricRewrites)
	prometheus.MustRegister(metricRulesLoaded)
	prometheus.MustRegister(metricRulesRejected)
	prometheus.MustRegister(metricFallbacks)
	prometheus.MustRegister(metricEvaluationDuration)
}
