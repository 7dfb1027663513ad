package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/metrics"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Stage, action and artifact names shared by both pipelines
const (
	StageSource = "Source"
	StageBuild  = "Build"

	ActionSource      = "Github-Source"
	ActionDockerBuild = "Docker-Build"

	ArtifactSource = "SourceOutput"
	ArtifactBuild  = "BuildOutput"

	SourceBranch = "main"
)

// Logical IDs of application pipeline resources
const (
	IDAppPipeline     = "AppPipeline"
	IDAppBuildProject = "AppBuildProject"
)

const ecrPowerUserPolicy = "AmazonEC2ContainerRegistryPowerUser"

// AppComposer owns the application pipeline. It is created with the
// Source and Build stages in place; deploy stages are appended one per
// call to AddDeployStage.
type AppComposer struct {
	provider provider.Provider
	pipeline *types.Pipeline
	logger   zerolog.Logger
}

// NewAppComposer declares the build project and the application pipeline
// with its Source and Build stages. buildSpec is inlined into the build
// project.
func NewAppComposer(ctx context.Context, p provider.Provider, cfg *config.Configuration, common *types.ResourceBundle, buildSpec map[string]any) (*AppComposer, error) {
	c := cfg.Common
	stackName := c.Get(config.KeyTagStackName)
	appSecretARN := c.Get(config.KeyGitHubAppSecretARN)

	project, err := p.BuildProject(ctx, provider.BuildProjectSpec{
		ID:              IDAppBuildProject,
		Name:            stackName + "-app-build",
		Stack:           types.StackApp,
		BuildSpec:       buildSpec,
		BuildSpecFile:   "buildspec.yml",
		Privileged:      true,
		ManagedPolicies: []string{ecrPowerUserPolicy},
		Statements: []types.PolicyStatement{{
			Actions:   []string{"secretsmanager:GetSecretValue"},
			Resources: []string{appSecretARN},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare app build project: %w", err)
	}

	name := stackName + "-app-pipeline"
	handle, err := p.Pipeline(ctx, provider.PipelineSpec{
		ID:    IDAppPipeline,
		Name:  name,
		Stack: types.StackApp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare app pipeline: %w", err)
	}

	composer := &AppComposer{
		provider: p,
		pipeline: &types.Pipeline{Name: name, Handle: handle},
		logger:   log.WithComponent("pipeline"),
	}

	source := SourceStage(c.Get(config.KeyCodeStarConnARN), c.Get(config.KeyGitHubOrg), c.Get(config.KeyGitHubAppRepo))
	build := types.PipelineStage{
		Name: StageBuild,
		Actions: []types.Action{{
			Name:     ActionDockerBuild,
			Kind:     types.ActionBuild,
			RunOrder: 1,
			Input:    ArtifactSource,
			Outputs:  []string{ArtifactBuild},
			Build: &types.BuildConfig{
				Project:     project,
				Environment: BuildEnvironment(c, common.ImageRepository),
			},
		}},
	}

	for _, stage := range []types.PipelineStage{source, build} {
		if err := composer.append(ctx, stage); err != nil {
			return nil, err
		}
	}
	return composer, nil
}

// SourceStage is the repository checkout stage both pipelines start with
func SourceStage(connectionARN, owner, repo string) types.PipelineStage {
	return types.PipelineStage{
		Name: StageSource,
		Actions: []types.Action{{
			Name:     ActionSource,
			Kind:     types.ActionSource,
			RunOrder: 1,
			Outputs:  []string{ArtifactSource},
			Source: &types.SourceConfig{
				ConnectionARN: connectionARN,
				Owner:         owner,
				Repo:          repo,
				Branch:        SourceBranch,
			},
		}},
	}
}

// BuildEnvironment returns the image build's environment in a fixed order
func BuildEnvironment(c *config.Common, repo types.Handle) []types.EnvVar {
	account := c.Get(config.KeyAWSAccount)
	region := c.Get(config.KeyAWSRegion)
	return []types.EnvVar{
		{Name: "BASE_REPO_URI", Value: fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", account, region)},
		{Name: "GITHUB_APP_SECRET_ARN", Value: c.Get(config.KeyGitHubAppSecretARN)},
		{Name: "REPOSITORY_URI", Value: repo.Attr(types.AttrRepositoryURI)},
		{Name: "AWS_REGION", Value: region},
		{Name: "CONTAINER_NAME", Value: c.Get(config.KeyContainerName)},
		{Name: "DOCKERFILE", Value: c.Get(config.KeyDockerfile)},
	}
}

// DeployStage builds the "<name>-deploy" stage. An approval gate, when
// requested, runs at order 1 and pushes the deploy action to order 2.
func DeployStage(name string, service types.Handle, approval bool, emails []string) types.PipelineStage {
	stage := types.PipelineStage{Name: name + "-deploy"}

	runOrder := 1
	if approval {
		stage.Actions = append(stage.Actions, types.Action{
			Name:     name + "-stage-approval",
			Kind:     types.ActionManualApproval,
			RunOrder: runOrder,
			Approval: &types.ApprovalConfig{NotifyEmails: append([]string(nil), emails...)},
		})
		runOrder++
	}

	stage.Actions = append(stage.Actions, types.Action{
		Name:     name + "-deploy",
		Kind:     types.ActionECSDeploy,
		RunOrder: runOrder,
		Input:    ArtifactBuild,
		Deploy:   &types.DeployConfig{Service: service},
	})
	return stage
}

// AddDeployStage appends a deploy stage for the named environment.
// It is not idempotent: calling it twice with the same name appends two
// stages. Callers must invoke it at most once per stage name.
func (c *AppComposer) AddDeployStage(ctx context.Context, name string, service types.Handle, approval bool, emails []string) error {
	if service == nil {
		return fmt.Errorf("deploy stage %s: no service", name)
	}

	stage := DeployStage(name, service, approval, emails)
	if err := c.append(ctx, stage); err != nil {
		return err
	}

	metrics.DeployStagesAdded.WithLabelValues(strconv.FormatBool(approval)).Inc()
	c.logger.Info().
		Str("stage", stage.Name).
		Bool("approval", approval).
		Int("actions", len(stage.Actions)).
		Msg("Added deploy stage")
	return nil
}

// Pipeline returns the composed pipeline model
func (c *AppComposer) Pipeline() *types.Pipeline {
	return c.pipeline
}

func (c *AppComposer) append(ctx context.Context, stage types.PipelineStage) error {
	if err := c.provider.AddPipelineStage(ctx, c.pipeline.Handle, stage); err != nil {
		return fmt.Errorf("failed to add pipeline stage %s: %w", stage.Name, err)
	}
	c.pipeline.Stages = append(c.pipeline.Stages, stage)
	return nil
}
