/*
Package metrics defines the Prometheus metrics Stagehand records while it
resolves a topology.

Metrics are registered with the default registry at package init. Stagehand
is a short-lived CLI rather than a scraped server, so the registry is written
once on exit in the text exposition format when --metrics-file is set. The
file can be picked up by a node exporter textfile collector or pushed from CI.

# Metrics

	stagehand_stages_planned_total                 counter
	stagehand_resources_declared_total{kind}       counter
	stagehand_plan_duration_seconds                histogram
	stagehand_deploy_stages_total{approval}        counter
	stagehand_provider_errors_total{operation}     counter
	stagehand_provider_operation_duration_seconds{operation}  histogram

Provider metrics are recorded by the instrumented provider wrapper, so they
cover the recording provider and the CDK provider alike.

# Timing

	timer := metrics.NewTimer()
	// ... work ...
	timer.ObserveDuration(metrics.PlanDuration)
	timer.ObserveDurationVec(metrics.ProviderOperationDuration, "Cluster")
*/
package metrics
