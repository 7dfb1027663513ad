package types

import (
	"sort"
	"time"
)

// ResourceKind identifies the class of a declared cloud resource
type ResourceKind string

const (
	KindNetwork         ResourceKind = "network"
	KindSecurityGroup   ResourceKind = "security-group"
	KindImageRepository ResourceKind = "image-repository"
	KindCluster         ResourceKind = "cluster"
	KindRole            ResourceKind = "role"
	KindBucket          ResourceKind = "bucket"
	KindSecret          ResourceKind = "secret"
	KindHostedZone      ResourceKind = "hosted-zone"
	KindCertificate     ResourceKind = "certificate"
	KindDatabaseCluster ResourceKind = "database-cluster"
	KindService         ResourceKind = "service"
	KindBuildProject    ResourceKind = "build-project"
	KindPipeline        ResourceKind = "pipeline"
)

// Well-known handle attributes
const (
	AttrARN             = "Arn"
	AttrRepositoryURI   = "RepositoryUri"
	AttrEndpointAddress = "Endpoint.Address"
	AttrLoadBalancerDNS = "LoadBalancer.DNSName"
)

// Handle is an opaque reference to a resource declared with a provider.
// Handles are only meaningful to the provider that issued them.
type Handle interface {
	LogicalID() string
	Kind() ResourceKind
	// Attr returns a provider-specific reference to an attribute that is
	// only known once the resource is materialized.
	Attr(name string) string
}

// StackRole selects which deployment stack a resource belongs to
type StackRole string

const (
	StackApp   StackRole = "app"   // shared and per-stage resources, app pipeline
	StackInfra StackRole = "infra" // self-deploying infrastructure pipeline
)

// EnvVar is one entry of an ordered container environment
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// ResourceBundle holds the shared infrastructure built once for all stages.
// It is never mutated after the common planner returns it.
type ResourceBundle struct {
	Network         Handle
	ComputeBoundary Handle
	DataBoundary    Handle
	DataPort        int
	ImageRepository Handle
	Cluster         Handle
	TaskRole        Handle
	DocsBucket      Handle
}

// SecretRef points at one JSON field of a secret. The service receives it by
// reference through the runtime's secret injection, never as plaintext.
type SecretRef struct {
	Secret Handle
	Field  string
}

// SecretMapping maps container environment names to secret references
type SecretMapping map[string]SecretRef

// Names returns the mapped environment names in sorted order
func (m SecretMapping) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Database is a provisioned relational cluster and its connection hostname
type Database struct {
	Cluster  Handle
	Hostname string
}

// StageBundle is everything declared for one deployment stage
type StageBundle struct {
	Name           string
	FQDN           string
	Secrets        SecretMapping
	Zone           Handle
	Certificate    Handle
	Credentials    Handle
	Database       Database
	Environment    []EnvVar
	Service        Handle
	Approval       bool
	ApprovalEmails []string
}

// ActionKind defines what a pipeline action does
type ActionKind string

const (
	ActionSource           ActionKind = "source"
	ActionBuild            ActionKind = "build"
	ActionManualApproval   ActionKind = "manual-approval"
	ActionECSDeploy        ActionKind = "ecs-deploy"
	ActionChangeSetCreate  ActionKind = "changeset-create"
	ActionChangeSetExecute ActionKind = "changeset-execute"
)

// SourceConfig configures a repository source action
type SourceConfig struct {
	ConnectionARN string
	Owner         string
	Repo          string
	Branch        string
}

// BuildConfig configures a build action
type BuildConfig struct {
	Project     Handle
	Environment []EnvVar
}

// ApprovalConfig configures a manual approval action
type ApprovalConfig struct {
	NotifyEmails []string
}

// DeployConfig configures a container service deploy action
type DeployConfig struct {
	Service Handle
}

// ChangeSetConfig configures a CloudFormation change-set action
type ChangeSetConfig struct {
	StackName        string
	ChangeSetName    string
	TemplatePath     string // only for create
	AdminPermissions bool
}

// Action is one step of a pipeline stage
type Action struct {
	Name      string
	Kind      ActionKind
	RunOrder  int
	Input     string   // artifact name consumed
	Outputs   []string // artifact names produced
	Source    *SourceConfig
	Build     *BuildConfig
	Approval  *ApprovalConfig
	Deploy    *DeployConfig
	ChangeSet *ChangeSetConfig
}

// PipelineStage is a named, ordered group of actions
type PipelineStage struct {
	Name    string
	Actions []Action
}

// Pipeline is a continuous-delivery pipeline and its ordered stages
type Pipeline struct {
	Name   string
	Handle Handle
	Stages []PipelineStage
}

// StageNames returns the pipeline stage names in execution order
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	return names
}

// PolicyStatement grants actions on resources to a role
type PolicyStatement struct {
	Actions   []string
	Resources []string
}

// Topology is the full result of one resolver run
type Topology struct {
	ID            string
	CreatedAt     time.Time
	ConfigPath    string
	Stacks        []string
	Tags          []Tag
	Common        *ResourceBundle
	Stages        []*StageBundle
	AppPipeline   *Pipeline
	InfraPipeline *Pipeline
}

// Tag is an application-wide resource tag
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// PlanRecord is a stored summary of a resolved topology
type PlanRecord struct {
	ID            string    `json:"id" yaml:"id"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	ConfigPath    string    `json:"configPath" yaml:"configPath"`
	Stages        []string  `json:"stages" yaml:"stages"`
	PipelineOrder []string  `json:"pipelineOrder" yaml:"pipelineOrder"`
	ResourceCount int       `json:"resourceCount" yaml:"resourceCount"`
	Document      []byte    `json:"document" yaml:"-"`
}
