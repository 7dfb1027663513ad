package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

const document = `
common:
  POSTGRES_PORT: 5432
  POSTGRES_USER: backstage
  AWS_REGION: us-east-1
  AWS_ACCOUNT: "123456789012"
  TAG_STACK_NAME: backstage
  CONTAINER_PORT: 7007
  CONTAINER_NAME: backstage
  DOMAIN_NAME: example.com
  DOCKERFILE: Dockerfile
  GITHUB_APP_REPO: portal
  GITHUB_INFRA_REPO: portal-infra
  GITHUB_ORG: acme
  CODESTAR_CONN_ARN: arn:aws:codestar-connections:us-east-1:123456789012:connection/abc
  GITHUB_APP_SECRET_ARN: arn:aws:secretsmanager:us-east-1:123456789012:secret:app
`

type fixture struct {
	rec      *provider.Recorder
	cfg      *config.Configuration
	common   *types.ResourceBundle
	composer *AppComposer
	service  types.Handle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Parse([]byte(document))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	rec := provider.NewRecorder("backstage", "backstage-pipeline")
	repo, err := rec.ImageRepository(ctx, provider.ImageRepositorySpec{ID: "ECRRepository", Source: cfg.Image})
	require.NoError(t, err)
	svc, err := rec.Bucket(ctx, provider.BucketSpec{ID: "stand-in-service"})
	require.NoError(t, err)

	common := &types.ResourceBundle{ImageRepository: repo}
	composer, err := NewAppComposer(ctx, rec, cfg, common, map[string]any{"version": "0.2"})
	require.NoError(t, err)

	return &fixture{rec: rec, cfg: cfg, common: common, composer: composer, service: svc}
}

func TestNewAppComposerSourceAndBuild(t *testing.T) {
	f := newFixture(t)
	p := f.composer.Pipeline()

	assert.Equal(t, "backstage-app-pipeline", p.Name)
	assert.Equal(t, []string{StageSource, StageBuild}, p.StageNames(), "no stages yields Source and Build only")

	source := p.Stages[0].Actions[0]
	assert.Equal(t, ActionSource, source.Name)
	assert.Equal(t, &types.SourceConfig{
		ConnectionARN: "arn:aws:codestar-connections:us-east-1:123456789012:connection/abc",
		Owner:         "acme",
		Repo:          "portal",
		Branch:        "main",
	}, source.Source)

	build := p.Stages[1].Actions[0]
	assert.Equal(t, ActionDockerBuild, build.Name)
	assert.Equal(t, ArtifactSource, build.Input)
	assert.Equal(t, []string{ArtifactBuild}, build.Outputs)

	var names []string
	values := make(map[string]string)
	for _, e := range build.Build.Environment {
		names = append(names, e.Name)
		values[e.Name] = e.Value
	}
	assert.Equal(t, []string{"BASE_REPO_URI", "GITHUB_APP_SECRET_ARN", "REPOSITORY_URI", "AWS_REGION", "CONTAINER_NAME", "DOCKERFILE"}, names)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com", values["BASE_REPO_URI"])
	assert.Equal(t, "${ECRRepository.RepositoryUri}", values["REPOSITORY_URI"])

	project, ok := f.rec.Lookup(IDAppBuildProject)
	require.True(t, ok)
	assert.Equal(t, []string{"AmazonEC2ContainerRegistryPowerUser"}, project.Properties["managedPolicies"])

	recorded := f.rec.PipelineStages(IDAppPipeline)
	require.Len(t, recorded, 2)
	assert.Equal(t, IDAppBuildProject, recorded[1].Actions[0].Target)
}

func TestDeployStageRunOrder(t *testing.T) {
	tests := []struct {
		name      string
		approval  bool
		emails    []string
		wantKinds []types.ActionKind
		wantOrder []int
	}{
		{
			name:      "without approval",
			wantKinds: []types.ActionKind{types.ActionECSDeploy},
			wantOrder: []int{1},
		},
		{
			name:      "with approval",
			approval:  true,
			emails:    []string{"ops@example.com"},
			wantKinds: []types.ActionKind{types.ActionManualApproval, types.ActionECSDeploy},
			wantOrder: []int{1, 2},
		},
		{
			name:      "approval without emails",
			approval:  true,
			wantKinds: []types.ActionKind{types.ActionManualApproval, types.ActionECSDeploy},
			wantOrder: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := DeployStage("prod", nil, tt.approval, tt.emails)
			assert.Equal(t, "prod-deploy", stage.Name)

			var kinds []types.ActionKind
			var orders []int
			for _, a := range stage.Actions {
				kinds = append(kinds, a.Kind)
				orders = append(orders, a.RunOrder)
			}
			assert.Equal(t, tt.wantKinds, kinds)
			assert.Equal(t, tt.wantOrder, orders)

			deploy := stage.Actions[len(stage.Actions)-1]
			assert.Equal(t, "prod-deploy", deploy.Name)
			assert.Equal(t, ArtifactBuild, deploy.Input)

			if tt.approval {
				approval := stage.Actions[0]
				assert.Equal(t, "prod-stage-approval", approval.Name)
				assert.Less(t, approval.RunOrder, deploy.RunOrder)
				assert.Equal(t, len(tt.emails), len(approval.Approval.NotifyEmails))
			}
		})
	}
}

func TestAddDeployStageAppendsInCallOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.composer.AddDeployStage(ctx, "test", f.service, false, nil))
	require.NoError(t, f.composer.AddDeployStage(ctx, "prod", f.service, true, []string{"ops@example.com"}))

	p := f.composer.Pipeline()
	assert.Equal(t, []string{"Source", "Build", "test-deploy", "prod-deploy"}, p.StageNames())
	assert.Len(t, p.Stages[2].Actions, 1)
	assert.Len(t, p.Stages[3].Actions, 2)

	recorded := f.rec.PipelineStages(IDAppPipeline)
	require.Len(t, recorded, 4)
	assert.Equal(t, "stand-in-service", recorded[3].Actions[1].Target)
}

// AddDeployStage does not deduplicate; guarding against repeats is the
// caller's job.
func TestAddDeployStageIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.composer.AddDeployStage(ctx, "test", f.service, false, nil))
	require.NoError(t, f.composer.AddDeployStage(ctx, "test", f.service, false, nil))

	p := f.composer.Pipeline()
	assert.Equal(t, []string{"Source", "Build", "test-deploy", "test-deploy"}, p.StageNames())
	assert.Len(t, f.rec.PipelineStages(IDAppPipeline), 4)
}

func TestAddDeployStageProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.rec.Fail("prod-deploy", errors.New("stage limit"))

	err := f.composer.AddDeployStage(context.Background(), "prod", f.service, false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Equal(t, []string{"Source", "Build"}, f.composer.Pipeline().StageNames())

	assert.Error(t, f.composer.AddDeployStage(context.Background(), "qa", nil, false, nil))
}

func TestComposeInfra(t *testing.T) {
	f := newFixture(t)
	stacks := []string{"backstage-pipeline", "backstage"}

	p, err := ComposeInfra(context.Background(), f.rec, f.cfg, "backstage-pipeline", stacks, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Source", "Synth", "Deploy-backstage-pipeline", "Deploy-backstage"}, p.StageNames())
	assert.Equal(t, "portal-infra", p.Stages[0].Actions[0].Source.Repo)

	deploy := p.Stages[3]
	require.Len(t, deploy.Actions, 2)
	create, exec := deploy.Actions[0], deploy.Actions[1]
	assert.Equal(t, "Create-backstage-ChangeSet", create.Name)
	assert.Equal(t, 1, create.RunOrder)
	assert.Equal(t, "backstage.template.json", create.ChangeSet.TemplatePath)
	assert.True(t, create.ChangeSet.AdminPermissions)
	assert.Equal(t, "Exec-backstage-ChangeSet", exec.Name)
	assert.Equal(t, 2, exec.RunOrder)
	assert.Equal(t, create.ChangeSet.ChangeSetName, exec.ChangeSet.ChangeSetName)

	project, ok := f.rec.Lookup(IDInfraBuildProject)
	require.True(t, ok)
	assert.Equal(t, "backstage-pipeline", project.Stack)
	assert.Equal(t, DefaultInfraBuildSpec, project.Properties["buildSpecFile"])
}
