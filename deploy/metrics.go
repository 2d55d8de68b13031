package deploy

import (
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/caraveld/caravel"
	caravelmetrics "github.com/caraveld/caravel/metrics"
)

var (
	deploymentDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "caravel",
		Subsystem: "deploy",
		Name:      "deployment_duration_seconds",
		Help:      "End-to-end deployment duration in seconds, by terminal state.",
		Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
	}, []string{caravelmetrics.LabelEnvironment, caravelmetrics.LabelCause, caravelmetrics.LabelResult})

	stageDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "caravel",
		Subsystem: "deploy",
		Name:      "stage_duration_seconds",
		Help:      "Duration in seconds of each stage of a deployment.",
		Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
	}, []string{caravelmetrics.LabelStage})
)

func observeDeployment(environment string, d caravel.Deployment, took time.Duration) {
	deploymentDuration.With(
		caravelmetrics.LabelEnvironment, environment,
		caravelmetrics.LabelCause, string(d.Cause),
		caravelmetrics.LabelResult, string(d.Status),
	).Observe(took.Seconds())
}

func observeStage(stage caravel.Status, took time.Duration) {
	stageDuration.With(
		caravelmetrics.LabelStage, string(stage),
	).Observe(took.Seconds())
}
