package planner

import (
	"context"
	"fmt"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Logical IDs of shared resources
const (
	IDNetwork         = "ECS-VPC"
	IDComputeBoundary = "FargateSecurityGroup"
	IDDataBoundary    = "AuroraSecurityGroup"
	IDImageRepository = "ECRRepository"
	IDCluster         = "Cluster"
	IDTaskRole        = "FargateTaskRole"
	IDDocsBucket      = "TechDocsBucket"
)

const taskPrincipal = "ecs-tasks.amazonaws.com"

// BuildCommon declares the shared infrastructure every stage builds on.
// Declarations happen in dependency order; the first provider failure
// aborts planning.
func (p *Planner) BuildCommon(ctx context.Context) (*types.ResourceBundle, error) {
	common := p.cfg.Common
	name := common.Get(config.KeyContainerName)

	network, err := p.provider.Network(ctx, provider.NetworkSpec{ID: IDNetwork, MaxAZs: p.opts.MaxAZs})
	if err != nil {
		return nil, fmt.Errorf("failed to declare network: %w", err)
	}

	compute, err := p.provider.SecurityGroup(ctx, provider.SecurityGroupSpec{
		ID:          IDComputeBoundary,
		Name:        name + "-fargate",
		Description: "Fargate tasks",
		Network:     network,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare compute boundary: %w", err)
	}

	data, err := p.provider.SecurityGroup(ctx, provider.SecurityGroupSpec{
		ID:          IDDataBoundary,
		Name:        name + "-aurora",
		Description: "Aurora PostgreSQL clusters",
		Network:     network,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare data boundary: %w", err)
	}

	port := common.PostgresPort()
	if err := p.provider.AllowIngress(ctx, provider.IngressSpec{
		Target:      data,
		Source:      compute,
		Port:        port,
		Description: "PostgreSQL from Fargate tasks",
	}); err != nil {
		return nil, fmt.Errorf("failed to allow database ingress: %w", err)
	}

	repo, err := p.provider.ImageRepository(ctx, provider.ImageRepositorySpec{ID: IDImageRepository, Source: p.cfg.Image})
	if err != nil {
		return nil, fmt.Errorf("failed to declare image repository: %w", err)
	}

	cluster, err := p.provider.Cluster(ctx, provider.ClusterSpec{ID: IDCluster, Network: network})
	if err != nil {
		return nil, fmt.Errorf("failed to declare cluster: %w", err)
	}

	role, err := p.provider.Role(ctx, provider.RoleSpec{
		ID:        IDTaskRole,
		Name:      name + "-task-role",
		AssumedBy: taskPrincipal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare task role: %w", err)
	}

	bucket, err := p.provider.Bucket(ctx, provider.BucketSpec{ID: IDDocsBucket})
	if err != nil {
		return nil, fmt.Errorf("failed to declare techdocs bucket: %w", err)
	}

	p.logger.Info().
		Str("repository", repo.LogicalID()).
		Int("db_port", port).
		Msg("Planned common resources")

	return &types.ResourceBundle{
		Network:         network,
		ComputeBoundary: compute,
		DataBoundary:    data,
		DataPort:        port,
		ImageRepository: repo,
		Cluster:         cluster,
		TaskRole:        role,
		DocsBucket:      bucket,
	}, nil
}
