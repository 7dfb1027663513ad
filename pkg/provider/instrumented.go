package provider

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/metrics"
	"github.com/cuemby/stagehand/pkg/types"
)

// Instrumented wraps a Provider with metrics and debug logging
type Instrumented struct {
	next   Provider
	logger zerolog.Logger
}

// Instrument returns p wrapped with metrics and logging
func Instrument(p Provider) *Instrumented {
	return &Instrumented{next: p, logger: log.WithComponent("provider")}
}

func (i *Instrumented) observe(op string, kind types.ResourceKind, id string, h types.Handle, err error, timer *metrics.Timer) (types.Handle, error) {
	timer.ObserveDurationVec(metrics.ProviderOperationDuration, op)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(op).Inc()
		i.logger.Error().Err(err).Str("operation", op).Str("resource", id).Msg("Provider operation failed")
		return nil, err
	}
	metrics.ResourcesDeclared.WithLabelValues(string(kind)).Inc()
	i.logger.Debug().Str("operation", op).Str("kind", string(kind)).Str("resource", id).Msg("Declared resource")
	return h, nil
}

func (i *Instrumented) Network(ctx context.Context, spec NetworkSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.Network(ctx, spec)
	return i.observe("Network", types.KindNetwork, spec.ID, h, err, t)
}

func (i *Instrumented) SecurityGroup(ctx context.Context, spec SecurityGroupSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.SecurityGroup(ctx, spec)
	return i.observe("SecurityGroup", types.KindSecurityGroup, spec.ID, h, err, t)
}

func (i *Instrumented) AllowIngress(ctx context.Context, spec IngressSpec) error {
	t := metrics.NewTimer()
	err := i.next.AllowIngress(ctx, spec)
	t.ObserveDurationVec(metrics.ProviderOperationDuration, "AllowIngress")
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("AllowIngress").Inc()
		i.logger.Error().Err(err).Int("port", spec.Port).Msg("Provider operation failed")
	}
	return err
}

func (i *Instrumented) ImageRepository(ctx context.Context, spec ImageRepositorySpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.ImageRepository(ctx, spec)
	return i.observe("ImageRepository", types.KindImageRepository, spec.ID, h, err, t)
}

func (i *Instrumented) Cluster(ctx context.Context, spec ClusterSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.Cluster(ctx, spec)
	return i.observe("Cluster", types.KindCluster, spec.ID, h, err, t)
}

func (i *Instrumented) Role(ctx context.Context, spec RoleSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.Role(ctx, spec)
	return i.observe("Role", types.KindRole, spec.ID, h, err, t)
}

func (i *Instrumented) Bucket(ctx context.Context, spec BucketSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.Bucket(ctx, spec)
	return i.observe("Bucket", types.KindBucket, spec.ID, h, err, t)
}

func (i *Instrumented) LookupSecret(ctx context.Context, spec SecretLookupSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.LookupSecret(ctx, spec)
	return i.observe("LookupSecret", types.KindSecret, spec.ID, h, err, t)
}

func (i *Instrumented) GenerateSecret(ctx context.Context, spec GeneratedSecretSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.GenerateSecret(ctx, spec)
	return i.observe("GenerateSecret", types.KindSecret, spec.ID, h, err, t)
}

func (i *Instrumented) LookupHostedZone(ctx context.Context, spec HostedZoneSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.LookupHostedZone(ctx, spec)
	return i.observe("LookupHostedZone", types.KindHostedZone, spec.ID, h, err, t)
}

func (i *Instrumented) Certificate(ctx context.Context, spec CertificateSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.Certificate(ctx, spec)
	return i.observe("Certificate", types.KindCertificate, spec.ID, h, err, t)
}

func (i *Instrumented) DatabaseCluster(ctx context.Context, spec DatabaseSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.DatabaseCluster(ctx, spec)
	return i.observe("DatabaseCluster", types.KindDatabaseCluster, spec.ID, h, err, t)
}

func (i *Instrumented) LoadBalancedService(ctx context.Context, spec ServiceSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.LoadBalancedService(ctx, spec)
	return i.observe("LoadBalancedService", types.KindService, spec.ID, h, err, t)
}

func (i *Instrumented) BuildProject(ctx context.Context, spec BuildProjectSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.BuildProject(ctx, spec)
	return i.observe("BuildProject", types.KindBuildProject, spec.ID, h, err, t)
}

func (i *Instrumented) Pipeline(ctx context.Context, spec PipelineSpec) (types.Handle, error) {
	t := metrics.NewTimer()
	h, err := i.next.Pipeline(ctx, spec)
	return i.observe("Pipeline", types.KindPipeline, spec.ID, h, err, t)
}

func (i *Instrumented) AddPipelineStage(ctx context.Context, pipeline types.Handle, stage types.PipelineStage) error {
	t := metrics.NewTimer()
	err := i.next.AddPipelineStage(ctx, pipeline, stage)
	t.ObserveDurationVec(metrics.ProviderOperationDuration, "AddPipelineStage")
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("AddPipelineStage").Inc()
		i.logger.Error().Err(err).Str("pipeline_stage", stage.Name).Msg("Provider operation failed")
	}
	return err
}

func (i *Instrumented) Tag(key, value string) {
	i.next.Tag(key, value)
}

var _ Provider = (*Instrumented)(nil)
