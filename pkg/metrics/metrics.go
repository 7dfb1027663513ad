package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Planning metrics
	StagesPlanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_stages_planned_total",
			Help: "Total number of deployment stages planned",
		},
	)

	ResourcesDeclared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_resources_declared_total",
			Help: "Total number of resources declared with the provider by kind",
		},
		[]string{"kind"},
	)

	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stagehand_plan_duration_seconds",
			Help:    "Time taken to resolve a full topology in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pipeline metrics
	DeployStagesAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_deploy_stages_total",
			Help: "Total number of deploy stages appended to the application pipeline",
		},
		[]string{"approval"},
	)

	// Provider metrics
	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_provider_errors_total",
			Help: "Total number of provider operation failures by operation",
		},
		[]string{"operation"},
	)

	ProviderOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stagehand_provider_operation_duration_seconds",
			Help:    "Provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(StagesPlanned)
	prometheus.MustRegister(ResourcesDeclared)
	prometheus.MustRegister(PlanDuration)
	prometheus.MustRegister(DeployStagesAdded)
	prometheus.MustRegister(ProviderErrors)
	prometheus.MustRegister(ProviderOperationDuration)
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
