package planner

import (
	"context"
	"fmt"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Service environment names injected from secrets
const (
	EnvGitHubClientID     = "AUTH_GITHUB_CLIENT_ID"
	EnvGitHubClientSecret = "AUTH_GITHUB_CLIENT_SECRET"
	EnvGitHubToken        = "GITHUB_TOKEN"
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSAccessKeySecret = "AWS_ACCESS_KEY_SECRET"
	EnvPostgresPassword   = "POSTGRES_PASSWORD"
)

// StageID scopes a logical ID to a stage
func StageID(stage, suffix string) string {
	return stage + "-" + suffix
}

// CredentialSecretName names the generated database credential secret
func CredentialSecretName(stage, container string) string {
	return fmt.Sprintf("%s-%s-db-auth", stage, container)
}

// BuildStage declares everything one stage needs on top of the shared
// bundle: secrets, certificate, database and the load-balanced service.
func (p *Planner) BuildStage(ctx context.Context, stage *config.Stage, common *types.ResourceBundle) (*types.StageBundle, error) {
	logger := log.WithStage(p.logger, stage.Name)
	cfg := p.cfg.Common
	domain := cfg.Get(config.KeyDomainName)
	container := cfg.Get(config.KeyContainerName)

	if stage.Host() == "" {
		return nil, &config.MissingFieldError{Field: fmt.Sprintf("stages.%s.%s", stage.Name, config.StageKeyHostName)}
	}
	fqdn := FQDN(stage.Host(), domain)

	secrets, err := p.resolveSecrets(ctx, stage)
	if err != nil {
		return nil, err
	}

	zone, err := p.provider.LookupHostedZone(ctx, provider.HostedZoneSpec{
		ID:         StageID(stage.Name, "HostedZone"),
		DomainName: domain,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: failed to look up hosted zone: %w", stage.Name, err)
	}

	cert, err := p.provider.Certificate(ctx, provider.CertificateSpec{
		ID:         StageID(stage.Name, "Certificate"),
		Source:     p.cfg.Certificate,
		DomainName: fqdn,
		Zone:       zone,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: failed to resolve certificate: %w", stage.Name, err)
	}

	creds, err := p.provider.GenerateSecret(ctx, provider.GeneratedSecretSpec{
		ID:          StageID(stage.Name, "DBCredentials"),
		Name:        CredentialSecretName(stage.Name, container),
		Template:    map[string]string{"username": cfg.Get(config.KeyPostgresUser)},
		GenerateKey: "password",
		Policy:      p.opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: failed to declare database credentials: %w", stage.Name, err)
	}
	secrets[EnvPostgresPassword] = types.SecretRef{Secret: creds, Field: "password"}

	db, err := p.provider.DatabaseCluster(ctx, provider.DatabaseSpec{
		ID:            StageID(stage.Name, "Database"),
		Engine:        p.opts.DBEngine,
		EngineVersion: p.opts.DBVersion,
		InstanceType:  p.opts.DBInstance,
		Credentials:   creds,
		Network:       common.Network,
		SecurityGroup: common.DataBoundary,
		Port:          common.DataPort,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: failed to declare database: %w", stage.Name, err)
	}
	hostname := db.Attr(types.AttrEndpointAddress)

	env := Environment(cfg, hostname, stage)

	svc, err := p.provider.LoadBalancedService(ctx, provider.ServiceSpec{
		ID:                 StageID(stage.Name, "Service"),
		Cluster:            common.Cluster,
		SecurityGroup:      common.ComputeBoundary,
		ImageRepository:    common.ImageRepository,
		TaskRole:           common.TaskRole,
		Certificate:        cert,
		Zone:               zone,
		ContainerName:      container,
		ContainerPort:      cfg.ContainerPort(),
		CPU:                p.opts.CPU,
		MemoryMiB:          p.opts.MemoryMiB,
		DesiredCount:       p.opts.DesiredCount,
		Environment:        env,
		Secrets:            secrets,
		DomainName:         fqdn,
		PublicLoadBalancer: true,
		RedirectHTTP:       true,
		EnableLogging:      true,
		ManagedTags:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: failed to declare service: %w", stage.Name, err)
	}

	logger.Info().
		Str("fqdn", fqdn).
		Strs("secrets", secrets.Names()).
		Msg("Planned stage resources")

	return &types.StageBundle{
		Name:           stage.Name,
		FQDN:           fqdn,
		Secrets:        secrets,
		Zone:           zone,
		Certificate:    cert,
		Credentials:    creds,
		Database:       types.Database{Cluster: db, Hostname: hostname},
		Environment:    env,
		Service:        svc,
		Approval:       stage.RequiresApproval(),
		ApprovalEmails: stage.NotifyEmails(),
	}, nil
}

// resolveSecrets looks up the externally managed auth secrets selected by
// the stage's secret source and maps their fields to environment names.
func (p *Planner) resolveSecrets(ctx context.Context, stage *config.Stage) (types.SecretMapping, error) {
	mapping := make(types.SecretMapping)

	var github, aws string
	switch src := stage.Secrets.(type) {
	case types.GitHubAuth:
		github = src.Name
	case types.AWSAuth:
		aws = src.Name
	case types.BothAuth:
		github, aws = src.GitHub, src.AWS
	case types.NoSecrets, nil:
	default:
		return nil, fmt.Errorf("stage %s: unsupported secret source %T", stage.Name, src)
	}

	if github != "" {
		h, err := p.provider.LookupSecret(ctx, provider.SecretLookupSpec{ID: StageID(stage.Name, "GithubAuthSecret"), Name: github})
		if err != nil {
			return nil, fmt.Errorf("stage %s: failed to look up github auth secret: %w", stage.Name, err)
		}
		mapping[EnvGitHubClientID] = types.SecretRef{Secret: h, Field: "id"}
		mapping[EnvGitHubClientSecret] = types.SecretRef{Secret: h, Field: "secret"}
		mapping[EnvGitHubToken] = types.SecretRef{Secret: h, Field: "pat"}
	}

	if aws != "" {
		h, err := p.provider.LookupSecret(ctx, provider.SecretLookupSpec{ID: StageID(stage.Name, "AwsAuthSecret"), Name: aws})
		if err != nil {
			return nil, fmt.Errorf("stage %s: failed to look up aws auth secret: %w", stage.Name, err)
		}
		mapping[EnvAWSAccessKeyID] = types.SecretRef{Secret: h, Field: "id"}
		mapping[EnvAWSAccessKeySecret] = types.SecretRef{Secret: h, Field: "secret"}
	}

	return mapping, nil
}

// Environment builds a stage's container environment: every common pair in
// document order, then POSTGRES_HOST, then the stage's NODE_ENV and
// LOG_LEVEL overlays. An overlay replaces a common value in place.
func Environment(common *config.Common, postgresHost string, stage *config.Stage) []types.EnvVar {
	pairs := common.Pairs()
	env := make([]types.EnvVar, 0, len(pairs)+3)
	for _, p := range pairs {
		env = append(env, types.EnvVar{Name: p.Key, Value: p.Value})
	}
	env = append(env, types.EnvVar{Name: config.KeyPostgresHost, Value: postgresHost})

	overlay := func(name string, value *string) {
		if value == nil {
			return
		}
		for i := range env {
			if env[i].Name == name {
				env[i].Value = *value
				return
			}
		}
		env = append(env, types.EnvVar{Name: name, Value: *value})
	}
	overlay(config.StageKeyNodeEnv, stage.NodeEnv)
	overlay(config.StageKeyLogLevel, stage.LogLevel)
	return env
}
