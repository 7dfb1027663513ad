package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/stagehand/pkg/types"
)

// ErrProvider matches any ProviderError
var ErrProvider = errors.New("cloud resource provider error")

// ProviderError wraps a failure reported by a provider operation
type ProviderError struct {
	Op       string
	Resource string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Provider declares cloud resources and returns opaque handles to them.
// Every declaration is scoped to the stack named by its spec; resources
// default to the application stack.
type Provider interface {
	Network(ctx context.Context, spec NetworkSpec) (types.Handle, error)
	SecurityGroup(ctx context.Context, spec SecurityGroupSpec) (types.Handle, error)
	AllowIngress(ctx context.Context, spec IngressSpec) error
	ImageRepository(ctx context.Context, spec ImageRepositorySpec) (types.Handle, error)
	Cluster(ctx context.Context, spec ClusterSpec) (types.Handle, error)
	Role(ctx context.Context, spec RoleSpec) (types.Handle, error)
	Bucket(ctx context.Context, spec BucketSpec) (types.Handle, error)

	LookupSecret(ctx context.Context, spec SecretLookupSpec) (types.Handle, error)
	GenerateSecret(ctx context.Context, spec GeneratedSecretSpec) (types.Handle, error)
	LookupHostedZone(ctx context.Context, spec HostedZoneSpec) (types.Handle, error)
	Certificate(ctx context.Context, spec CertificateSpec) (types.Handle, error)
	DatabaseCluster(ctx context.Context, spec DatabaseSpec) (types.Handle, error)
	LoadBalancedService(ctx context.Context, spec ServiceSpec) (types.Handle, error)

	BuildProject(ctx context.Context, spec BuildProjectSpec) (types.Handle, error)
	Pipeline(ctx context.Context, spec PipelineSpec) (types.Handle, error)
	AddPipelineStage(ctx context.Context, pipeline types.Handle, stage types.PipelineStage) error

	// Tag applies an application-wide tag to every declared resource
	Tag(key, value string)
}

// NetworkSpec declares a virtual network
type NetworkSpec struct {
	ID     string
	MaxAZs int
}

// SecurityGroupSpec declares a security boundary inside a network
type SecurityGroupSpec struct {
	ID          string
	Name        string
	Description string
	Network     types.Handle
}

// IngressSpec allows TCP traffic from Source into Target on Port
type IngressSpec struct {
	Target      types.Handle
	Source      types.Handle
	Port        int
	Description string
}

// ImageRepositorySpec adopts or creates a container image repository
type ImageRepositorySpec struct {
	ID     string
	Source types.ImageSource
}

// ClusterSpec declares a container cluster in a network
type ClusterSpec struct {
	ID      string
	Network types.Handle
}

// RoleSpec declares an IAM role assumed by a service principal
type RoleSpec struct {
	ID        string
	Name      string
	AssumedBy string
}

// BucketSpec declares an object storage bucket
type BucketSpec struct {
	ID string
}

// SecretLookupSpec references an existing secret by name
type SecretLookupSpec struct {
	ID   string
	Name string
}

// GeneratedSecretSpec declares a secret whose GenerateKey field is filled
// with a generated password and merged into Template.
type GeneratedSecretSpec struct {
	ID          string
	Name        string
	Template    map[string]string
	GenerateKey string
	Policy      types.PasswordPolicy
}

// HostedZoneSpec looks up an existing DNS zone
type HostedZoneSpec struct {
	ID         string
	DomainName string
}

// CertificateSpec adopts or issues a TLS certificate
type CertificateSpec struct {
	ID         string
	Source     types.CertificateSource
	DomainName string
	Zone       types.Handle
}

// DatabaseSpec declares a relational database cluster
type DatabaseSpec struct {
	ID            string
	Engine        string
	EngineVersion string
	InstanceType  string
	Credentials   types.Handle
	Network       types.Handle
	SecurityGroup types.Handle
	Port          int
}

// ServiceSpec declares a load-balanced container service
type ServiceSpec struct {
	ID              string
	Cluster         types.Handle
	SecurityGroup   types.Handle
	ImageRepository types.Handle
	TaskRole        types.Handle
	Certificate     types.Handle
	Zone            types.Handle

	ContainerName string
	ContainerPort int
	CPU           int
	MemoryMiB     int
	DesiredCount  int
	Environment   []types.EnvVar
	Secrets       types.SecretMapping

	DomainName         string
	PublicLoadBalancer bool
	RedirectHTTP       bool
	EnableLogging      bool
	ManagedTags        bool
}

// BuildProjectSpec declares a build project. BuildSpec is inlined when set;
// otherwise BuildSpecFile is read from the source artifact.
type BuildProjectSpec struct {
	ID              string
	Name            string
	Stack           types.StackRole
	BuildSpec       map[string]any
	BuildSpecFile   string
	Privileged      bool
	ManagedPolicies []string
	Statements      []types.PolicyStatement
}

// PipelineSpec declares an empty pipeline
type PipelineSpec struct {
	ID               string
	Name             string
	Stack            types.StackRole
	CrossAccountKeys bool
}

// Wrap returns err as a ProviderError unless it already is one
func Wrap(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Resource: resource, Err: err}
}
