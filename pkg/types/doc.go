/*
Package types defines the core data structures shared by every stagehand
package.

The types package is the foundation of the resolver's data model. It holds
no behavior beyond small accessors; configuration parsing lives in
pkg/config and resource declaration lives behind pkg/provider.

# Architecture

	┌──────────────────── Topology ─────────────────────┐
	│                                                    │
	│  ResourceBundle (shared, immutable)                │
	│    Network, ComputeBoundary, DataBoundary,         │
	│    ImageRepository, Cluster, TaskRole, DocsBucket  │
	│                                                    │
	│  []*StageBundle (declaration order)                │
	│    FQDN, Secrets, Certificate, Credentials,        │
	│    Database, Environment, Service                  │
	│                                                    │
	│  AppPipeline    Source → Build → <stage>-deploy…   │
	│  InfraPipeline  Source → Synth → Deploy-<stack>…   │
	└────────────────────────────────────────────────────┘

# Handles

A Handle is an opaque reference issued by a cloud resource provider. Only
the issuing provider can interpret it. Attributes that are not known until
deployment (repository URIs, database endpoints) are exposed through
Handle.Attr as provider-specific tokens.

# Tagged Variants

Several configuration switches are resolved once, during validation, into
closed variant types:

  - SecretSource: NoSecrets, GitHubAuth, AWSAuth, BothAuth
  - CertificateSource: ExistingCertificate, DNSValidatedCertificate
  - ImageSource: ExistingRepository, NewRepository

Planners switch on the variant instead of re-checking raw keys.

# Pipeline Model

A Pipeline is an ordered list of PipelineStage values, each an ordered list
of Action values. RunOrder is 1-based within a stage; actions sharing a
RunOrder may run in parallel.
*/
package types
