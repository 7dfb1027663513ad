/*
Package topology drives a full plan: configuration in, declared topology out.

# Build Order

	config.Load ──▶ planner.BuildCommon ──▶ pipeline.NewAppComposer
	                                              │
	           ┌──────────────────────────────────┘
	           ▼
	  for each stage, in configuration order:
	      planner.BuildStage ──▶ composer.AddDeployStage
	           │
	           ▼
	  pipeline.ComposeInfra ──▶ Topology

Common resources are declared once and shared read-only by every stage.
Stages are planned one at a time in the order they appear in the
configuration file, which fixes the order of deploy stages in the
application pipeline. The driver calls AddDeployStage exactly once per
stage name.

# Stacks

TAG_STACK_NAME names the application stack. The infrastructure pipeline
lives in "<TAG_STACK_NAME>-pipeline" and deploys that stack before the
application stack. Every resource is tagged with Name and Product.

# Providers

The driver does not pick a provider. A ProviderFactory receives the
stack names once the configuration is loaded and returns either the
in-memory Recorder or the CDK provider. The driver wraps whatever it gets
with provider.Instrument so every declaration is timed and counted.

# Failure

The first error aborts the build. Stages planned before the failure stay
declared; rolling them back is the provider's concern. When a Broker is
configured the driver publishes stage.failed and topology.failed before
returning the error.
*/
package topology
