package cdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecspatterns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/jsii-runtime-go"
	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Options configures the CDK app
type Options struct {
	// OutDir receives the cloud assembly
	OutDir string

	AppStack   string
	InfraStack string
	Account    string
	Region     string
}

// Provider declares resources as aws-cdk-go constructs in two stacks
type Provider struct {
	app    awscdk.App
	stacks map[types.StackRole]awscdk.Stack

	mu     sync.Mutex
	logger zerolog.Logger
}

var _ provider.Provider = (*Provider)(nil)

// New creates the CDK app and its application and pipeline stacks
func New(opts Options) (p *Provider, err error) {
	defer recoverAs("New", opts.AppStack, &err)

	app := awscdk.NewApp(&awscdk.AppProps{Outdir: jsii.String(opts.OutDir)})
	env := &awscdk.Environment{
		Account: jsii.String(opts.Account),
		Region:  jsii.String(opts.Region),
	}

	p = &Provider{
		app: app,
		stacks: map[types.StackRole]awscdk.Stack{
			types.StackApp:   awscdk.NewStack(app, jsii.String(opts.AppStack), &awscdk.StackProps{Env: env}),
			types.StackInfra: awscdk.NewStack(app, jsii.String(opts.InfraStack), &awscdk.StackProps{Env: env}),
		},
		logger: log.WithComponent("cdk"),
	}
	return p, nil
}

// Synth writes the cloud assembly and returns its directory
func (p *Provider) Synth() (dir string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverAs("Synth", "app", &err)

	assembly := p.app.Synth(nil)
	dir = *assembly.Directory()
	p.logger.Info().Str("dir", dir).Msg("Synthesized cloud assembly")
	return dir, nil
}

func (p *Provider) stack(role types.StackRole) awscdk.Stack {
	if s, ok := p.stacks[role]; ok {
		return s
	}
	return p.stacks[types.StackApp]
}

// declare runs a construct call under the provider lock, turning jsii
// panics into provider errors
func (p *Provider) declare(op, id string, kind types.ResourceKind, fn func() (any, map[string]*string, error)) (h types.Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverAs(op, id, &err)

	construct, attrs, err := fn()
	if err != nil {
		return nil, provider.Wrap(op, id, err)
	}
	return &handle{id: id, kind: kind, construct: construct, attrs: attrs}, nil
}

func (p *Provider) Network(_ context.Context, spec provider.NetworkSpec) (types.Handle, error) {
	return p.declare("Network", spec.ID, types.KindNetwork, func() (any, map[string]*string, error) {
		vpc := awsec2.NewVpc(p.stack(types.StackApp), jsii.String(spec.ID), &awsec2.VpcProps{
			MaxAzs: jsii.Number(spec.MaxAZs),
		})
		return vpc, map[string]*string{"VpcId": vpc.VpcId()}, nil
	})
}

func (p *Provider) SecurityGroup(_ context.Context, spec provider.SecurityGroupSpec) (types.Handle, error) {
	return p.declare("SecurityGroup", spec.ID, types.KindSecurityGroup, func() (any, map[string]*string, error) {
		vpc, err := as[awsec2.IVpc](spec.Network)
		if err != nil {
			return nil, nil, err
		}
		sg := awsec2.NewSecurityGroup(p.stack(types.StackApp), jsii.String(spec.ID), &awsec2.SecurityGroupProps{
			Vpc:               vpc,
			SecurityGroupName: jsii.String(spec.Name),
			Description:       jsii.String(spec.Description),
		})
		return sg, map[string]*string{"GroupId": sg.SecurityGroupId()}, nil
	})
}

func (p *Provider) AllowIngress(_ context.Context, spec provider.IngressSpec) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverAs("AllowIngress", ingressID(spec), &err)

	target, err := as[awsec2.ISecurityGroup](spec.Target)
	if err != nil {
		return provider.Wrap("AllowIngress", ingressID(spec), err)
	}
	source, err := as[awsec2.ISecurityGroup](spec.Source)
	if err != nil {
		return provider.Wrap("AllowIngress", ingressID(spec), err)
	}
	target.AddIngressRule(source, awsec2.Port_Tcp(jsii.Number(spec.Port)), jsii.String(spec.Description), jsii.Bool(false))
	return nil
}

func (p *Provider) ImageRepository(_ context.Context, spec provider.ImageRepositorySpec) (types.Handle, error) {
	return p.declare("ImageRepository", spec.ID, types.KindImageRepository, func() (any, map[string]*string, error) {
		scope := p.stack(types.StackApp)
		var repo awsecr.IRepository
		switch src := spec.Source.(type) {
		case types.ExistingRepository:
			repo = awsecr.Repository_FromRepositoryName(scope, jsii.String(spec.ID), jsii.String(src.Name))
		case types.NewRepository:
			repo = awsecr.NewRepository(scope, jsii.String(spec.ID), &awsecr.RepositoryProps{
				RepositoryName:  jsii.String(src.Name),
				ImageScanOnPush: jsii.Bool(true),
			})
		default:
			return nil, nil, fmt.Errorf("unknown image source %T", spec.Source)
		}
		return repo, map[string]*string{
			types.AttrRepositoryURI: repo.RepositoryUri(),
			types.AttrARN:           repo.RepositoryArn(),
		}, nil
	})
}

func (p *Provider) Cluster(_ context.Context, spec provider.ClusterSpec) (types.Handle, error) {
	return p.declare("Cluster", spec.ID, types.KindCluster, func() (any, map[string]*string, error) {
		vpc, err := as[awsec2.IVpc](spec.Network)
		if err != nil {
			return nil, nil, err
		}
		cluster := awsecs.NewCluster(p.stack(types.StackApp), jsii.String(spec.ID), &awsecs.ClusterProps{Vpc: vpc})
		return cluster, map[string]*string{types.AttrARN: cluster.ClusterArn()}, nil
	})
}

func (p *Provider) Role(_ context.Context, spec provider.RoleSpec) (types.Handle, error) {
	return p.declare("Role", spec.ID, types.KindRole, func() (any, map[string]*string, error) {
		role := awsiam.NewRole(p.stack(types.StackApp), jsii.String(spec.ID), &awsiam.RoleProps{
			RoleName:  jsii.String(spec.Name),
			AssumedBy: awsiam.NewServicePrincipal(jsii.String(spec.AssumedBy), nil),
		})
		return role, map[string]*string{types.AttrARN: role.RoleArn()}, nil
	})
}

func (p *Provider) Bucket(_ context.Context, spec provider.BucketSpec) (types.Handle, error) {
	return p.declare("Bucket", spec.ID, types.KindBucket, func() (any, map[string]*string, error) {
		bucket := awss3.NewBucket(p.stack(types.StackApp), jsii.String(spec.ID), &awss3.BucketProps{})
		return bucket, map[string]*string{types.AttrARN: bucket.BucketArn()}, nil
	})
}

func (p *Provider) LookupSecret(_ context.Context, spec provider.SecretLookupSpec) (types.Handle, error) {
	return p.declare("LookupSecret", spec.ID, types.KindSecret, func() (any, map[string]*string, error) {
		secret := awssecretsmanager.Secret_FromSecretNameV2(p.stack(types.StackApp), jsii.String(spec.ID), jsii.String(spec.Name))
		return secret, map[string]*string{types.AttrARN: secret.SecretArn()}, nil
	})
}

func (p *Provider) GenerateSecret(_ context.Context, spec provider.GeneratedSecretSpec) (types.Handle, error) {
	return p.declare("GenerateSecret", spec.ID, types.KindSecret, func() (any, map[string]*string, error) {
		template, err := json.Marshal(spec.Template)
		if err != nil {
			return nil, nil, err
		}
		secret := awssecretsmanager.NewSecret(p.stack(types.StackApp), jsii.String(spec.ID), &awssecretsmanager.SecretProps{
			SecretName: jsii.String(spec.Name),
			GenerateSecretString: &awssecretsmanager.SecretStringGenerator{
				SecretStringTemplate: jsii.String(string(template)),
				GenerateStringKey:    jsii.String(spec.GenerateKey),
				ExcludePunctuation:   jsii.Bool(spec.Policy.ExcludePunctuation),
				IncludeSpace:         jsii.Bool(spec.Policy.IncludeSpace),
			},
		})
		return secret, map[string]*string{types.AttrARN: secret.SecretArn()}, nil
	})
}

// LookupHostedZone resolves the zone at synth time. Without cached context
// the CDK records a missing-context entry and the CDK CLI fills it in.
func (p *Provider) LookupHostedZone(_ context.Context, spec provider.HostedZoneSpec) (types.Handle, error) {
	return p.declare("LookupHostedZone", spec.ID, types.KindHostedZone, func() (any, map[string]*string, error) {
		zone := awsroute53.HostedZone_FromLookup(p.stack(types.StackApp), jsii.String(spec.ID), &awsroute53.HostedZoneProviderProps{
			DomainName: jsii.String(spec.DomainName),
		})
		return zone, map[string]*string{"HostedZoneId": zone.HostedZoneId()}, nil
	})
}

func (p *Provider) Certificate(_ context.Context, spec provider.CertificateSpec) (types.Handle, error) {
	return p.declare("Certificate", spec.ID, types.KindCertificate, func() (any, map[string]*string, error) {
		scope := p.stack(types.StackApp)
		var cert awscertificatemanager.ICertificate
		switch src := spec.Source.(type) {
		case types.ExistingCertificate:
			cert = awscertificatemanager.Certificate_FromCertificateArn(scope, jsii.String(spec.ID), jsii.String(src.ARN))
		case types.DNSValidatedCertificate:
			zone, err := as[awsroute53.IHostedZone](spec.Zone)
			if err != nil {
				return nil, nil, err
			}
			cert = awscertificatemanager.NewCertificate(scope, jsii.String(spec.ID), &awscertificatemanager.CertificateProps{
				DomainName: jsii.String(spec.DomainName),
				Validation: awscertificatemanager.CertificateValidation_FromDns(zone),
			})
		default:
			return nil, nil, fmt.Errorf("unknown certificate source %T", spec.Source)
		}
		return cert, map[string]*string{types.AttrARN: cert.CertificateArn()}, nil
	})
}

// DatabaseCluster declares a provisioned Aurora PostgreSQL cluster with a
// single writer in the private subnets
func (p *Provider) DatabaseCluster(_ context.Context, spec provider.DatabaseSpec) (types.Handle, error) {
	return p.declare("DatabaseCluster", spec.ID, types.KindDatabaseCluster, func() (any, map[string]*string, error) {
		if spec.Engine != "aurora-postgresql" {
			return nil, nil, fmt.Errorf("unsupported engine %q", spec.Engine)
		}
		creds, err := as[awssecretsmanager.ISecret](spec.Credentials)
		if err != nil {
			return nil, nil, err
		}
		vpc, err := as[awsec2.IVpc](spec.Network)
		if err != nil {
			return nil, nil, err
		}
		sg, err := as[awsec2.ISecurityGroup](spec.SecurityGroup)
		if err != nil {
			return nil, nil, err
		}

		cluster := awsrds.NewDatabaseCluster(p.stack(types.StackApp), jsii.String(spec.ID), &awsrds.DatabaseClusterProps{
			Engine: awsrds.DatabaseClusterEngine_AuroraPostgres(&awsrds.AuroraPostgresClusterEngineProps{
				Version: awsrds.AuroraPostgresEngineVersion_Of(jsii.String(spec.EngineVersion), jsii.String(majorVersion(spec.EngineVersion)), nil),
			}),
			Credentials: awsrds.Credentials_FromSecret(creds, nil),
			Writer: awsrds.ClusterInstance_Provisioned(jsii.String("writer"), &awsrds.ProvisionedClusterInstanceProps{
				InstanceType: awsec2.NewInstanceType(jsii.String(spec.InstanceType)),
			}),
			Vpc:            vpc,
			VpcSubnets:     &awsec2.SubnetSelection{SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS},
			SecurityGroups: &[]awsec2.ISecurityGroup{sg},
			Port:           jsii.Number(spec.Port),
		})
		return cluster, map[string]*string{
			types.AttrEndpointAddress: cluster.ClusterEndpoint().Hostname(),
			types.AttrARN:             cluster.ClusterArn(),
		}, nil
	})
}

func (p *Provider) LoadBalancedService(_ context.Context, spec provider.ServiceSpec) (types.Handle, error) {
	return p.declare("LoadBalancedService", spec.ID, types.KindService, func() (any, map[string]*string, error) {
		cluster, err := as[awsecs.ICluster](spec.Cluster)
		if err != nil {
			return nil, nil, err
		}
		sg, err := as[awsec2.ISecurityGroup](spec.SecurityGroup)
		if err != nil {
			return nil, nil, err
		}
		repo, err := as[awsecr.IRepository](spec.ImageRepository)
		if err != nil {
			return nil, nil, err
		}
		role, err := as[awsiam.IRole](spec.TaskRole)
		if err != nil {
			return nil, nil, err
		}
		cert, err := as[awscertificatemanager.ICertificate](spec.Certificate)
		if err != nil {
			return nil, nil, err
		}
		zone, err := as[awsroute53.IHostedZone](spec.Zone)
		if err != nil {
			return nil, nil, err
		}
		secrets, err := containerSecrets(spec.Secrets)
		if err != nil {
			return nil, nil, err
		}

		svc := awsecspatterns.NewApplicationLoadBalancedFargateService(p.stack(types.StackApp), jsii.String(spec.ID), &awsecspatterns.ApplicationLoadBalancedFargateServiceProps{
			Cluster:        cluster,
			Cpu:            jsii.Number(spec.CPU),
			MemoryLimitMiB: jsii.Number(spec.MemoryMiB),
			DesiredCount:   jsii.Number(spec.DesiredCount),
			SecurityGroups: &[]awsec2.ISecurityGroup{sg},
			TaskImageOptions: &awsecspatterns.ApplicationLoadBalancedTaskImageOptions{
				Image:         awsecs.ContainerImage_FromEcrRepository(repo, nil),
				ContainerName: jsii.String(spec.ContainerName),
				ContainerPort: jsii.Number(spec.ContainerPort),
				Environment:   containerEnvironment(spec.Environment),
				Secrets:       &secrets,
				TaskRole:      role,
				EnableLogging: jsii.Bool(spec.EnableLogging),
			},
			Certificate:          cert,
			RedirectHTTP:         jsii.Bool(spec.RedirectHTTP),
			DomainName:           jsii.String(spec.DomainName),
			DomainZone:           zone,
			PublicLoadBalancer:   jsii.Bool(spec.PublicLoadBalancer),
			EnableECSManagedTags: jsii.Bool(spec.ManagedTags),
		})
		return svc.Service(), map[string]*string{
			types.AttrLoadBalancerDNS: svc.LoadBalancer().LoadBalancerDnsName(),
			types.AttrARN:             svc.Service().ServiceArn(),
		}, nil
	})
}

// Tag applies key=value to every construct in the app
func (p *Provider) Tag(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	awscdk.Tags_Of(p.app).Add(jsii.String(key), jsii.String(value), nil)
}

func containerEnvironment(env []types.EnvVar) *map[string]*string {
	out := make(map[string]*string, len(env))
	for _, e := range env {
		out[e.Name] = jsii.String(e.Value)
	}
	return &out
}

func containerSecrets(m types.SecretMapping) (map[string]awsecs.Secret, error) {
	out := make(map[string]awsecs.Secret, len(m))
	for _, name := range m.Names() {
		ref := m[name]
		secret, err := as[awssecretsmanager.ISecret](ref.Secret)
		if err != nil {
			return nil, fmt.Errorf("secret %s: %w", name, err)
		}
		out[name] = awsecs.Secret_FromSecretsManager(secret, jsii.String(ref.Field))
	}
	return out, nil
}

func majorVersion(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}

func ingressID(spec provider.IngressSpec) string {
	target, source := "?", "?"
	if spec.Target != nil {
		target = spec.Target.LogicalID()
	}
	if spec.Source != nil {
		source = spec.Source.LogicalID()
	}
	return fmt.Sprintf("%s-from-%s-%d", target, source, spec.Port)
}

// recoverAs converts a panic raised by the jsii runtime into a provider
// error stored in *err
func recoverAs(op, resource string, err *error) {
	if r := recover(); r != nil {
		*err = &provider.ProviderError{Op: op, Resource: resource, Err: fmt.Errorf("%v", r)}
	}
}
