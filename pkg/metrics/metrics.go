// Package metrics exposes the Prometheus surface for an agent process: one
// counter/gauge family per tick outcome, plus a histogram of tick duration
// per role, in the style cluster-bare-autoscaler registers its own
// reconcile-loop metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	k8smetrics "k8s.io/component-base/metrics"
	"k8s.io/component-base/metrics/legacyregistry"
)

const namespace = "powerbalancer"

var (
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerbalancer_ticks_total",
		Help: "Number of control-loop ticks run, by role.",
	}, []string{"role"})

	TickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerbalancer_tick_errors_total",
		Help: "Number of ticks that returned an error, by error kind.",
	}, []string{"kind"})

	StepCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerbalancer_step_count",
		Help: "This node's current step_count.",
	}, []string{"level"})

	PowerLimit = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerbalancer_power_limit_watts",
		Help: "Current enforced power_limit per package.",
	}, []string{"level", "package"})

	PowerSlack = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerbalancer_power_slack_watts",
		Help: "Total cap minus power_limit reported by this node's sample (package=\"sum\"); the slack a parent can redistribute.",
	}, []string{"level", "package"})

	EpochRuntime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerbalancer_epoch_runtime_seconds",
		Help: "Maximum epoch runtime reported by this node's sample (package=\"max\").",
	}, []string{"level", "package"})

	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powerbalancer_tick_duration_seconds",
		Help:    "Time taken by one control-loop tick, by role.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"role"})

	// functionDuration mirrors the legacy autoscaler's component-base
	// histogram registered through legacyregistry rather than the local
	// Prometheus registry promhttp.Handler serves — client-go's own metrics
	// (request latency, rate limiter) land in the same legacy registry, so
	// this keeps control-loop timings next to them for a k8s-native scrape
	// target that only knows about the component-base registry.
	functionDuration = k8smetrics.NewHistogramVec(
		&k8smetrics.HistogramOpts{
			Namespace: namespace,
			Name:      "function_duration_seconds",
			Help:      "Time taken by named control-loop functions.",
			Buckets:   k8smetrics.ExponentialBuckets(0.0001, 2, 20),
		}, []string{"function"},
	)
)

func init() {
	legacyregistry.MustRegister(functionDuration)
}

// UpdateDurationFromStart records, under the component-base legacy registry,
// how long the function identified by label took since start.
func UpdateDurationFromStart(label string, start time.Time) {
	functionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

// Serve starts the /metrics (promhttp) and /metrics/legacy (legacyregistry)
// handlers on addr in the background. It does not block.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/metrics/legacy", legacyregistry.Handler())
	go http.ListenAndServe(addr, mux)
}
