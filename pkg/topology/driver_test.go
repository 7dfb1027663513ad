package topology

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/events"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/planner"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

const common = `
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

const twoStages = `
stages:
  test:
    HOST_NAME: test
  prod:
    HOST_NAME: app
    STAGE_APPROVAL: true
    APPROVAL_EMAILS:
      - ops@example.com
`

func parse(t *testing.T, doc string) *config.Configuration {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

// newDriver returns a driver whose provider is a Recorder, and a pointer
// that holds the recorder once a build has started.
func newDriver(opts Options) (*Driver, **provider.Recorder) {
	var rec *provider.Recorder
	d := NewDriver(func(s Stacks) (provider.Provider, error) {
		rec = provider.NewRecorder(s.App, s.Infra)
		return rec, nil
	}, opts)
	return d, &rec
}

func defaultOptions() Options {
	return Options{Planner: planner.DefaultOptions(), AppBuildSpec: map[string]any{"version": "0.2"}}
}

func TestBuildExampleTopology(t *testing.T) {
	d, rec := newDriver(defaultOptions())

	topo, err := d.Build(context.Background(), parse(t, common+twoStages))
	require.NoError(t, err)

	assert.NotEmpty(t, topo.ID)
	assert.Equal(t, []string{"backstage-pipeline", "backstage"}, topo.Stacks)
	require.Len(t, topo.Stages, 2)
	assert.Equal(t, "test.example.com", topo.Stages[0].FQDN)
	assert.Equal(t, "app.example.com", topo.Stages[1].FQDN)

	app := topo.AppPipeline
	assert.Equal(t, []string{"Source", "Build", "test-deploy", "prod-deploy"}, app.StageNames())
	assert.Len(t, app.Stages[2].Actions, 1)
	require.Len(t, app.Stages[3].Actions, 2)
	assert.Equal(t, types.ActionManualApproval, app.Stages[3].Actions[0].Kind)
	assert.Equal(t, []string{"ops@example.com"}, app.Stages[3].Actions[0].Approval.NotifyEmails)
	assert.Less(t, app.Stages[3].Actions[0].RunOrder, app.Stages[3].Actions[1].RunOrder)

	assert.Equal(t, []string{"Source", "Synth", "Deploy-backstage-pipeline", "Deploy-backstage"}, topo.InfraPipeline.StageNames())

	doc := (*rec).Document()
	assert.Equal(t, []types.Tag{{Key: "Name", Value: "backstage"}, {Key: "Product", Value: "dev-portal"}}, doc.Tags)
	assert.Equal(t, 2, (*rec).Count(types.KindService))
	assert.Equal(t, 2, (*rec).Count(types.KindDatabaseCluster))
	assert.Equal(t, 1, (*rec).Count(types.KindNetwork), "common resources are built once")
}

func TestBuildEmptyStages(t *testing.T) {
	d, _ := newDriver(defaultOptions())

	topo, err := d.Build(context.Background(), parse(t, common+"stages: {}\n"))
	require.NoError(t, err)
	assert.Empty(t, topo.Stages)
	assert.Equal(t, []string{"Source", "Build"}, topo.AppPipeline.StageNames())
}

func TestBuildFollowsConfigurationOrder(t *testing.T) {
	d, _ := newDriver(defaultOptions())
	doc := common + `
stages:
  zeta:
    HOST_NAME: z
  alpha:
    HOST_NAME: a
  mid:
    HOST_NAME: m
`
	topo, err := d.Build(context.Background(), parse(t, doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Source", "Build", "zeta-deploy", "alpha-deploy", "mid-deploy"}, topo.AppPipeline.StageNames())
}

func TestBuildAbortsOnStageFailure(t *testing.T) {
	broker := events.NewBroker()
	sub := broker.Subscribe()
	opts := defaultOptions()
	opts.Broker = broker

	var rec *provider.Recorder
	d := NewDriver(func(s Stacks) (provider.Provider, error) {
		rec = provider.NewRecorder(s.App, s.Infra)
		rec.Fail("prod-HostedZone", errors.New("zone not found"))
		return rec, nil
	}, opts)

	broker.Start()
	_, err := d.Build(context.Background(), parse(t, common+twoStages))
	broker.Stop()

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Contains(t, err.Error(), "prod")

	// test was fully planned before prod failed
	assert.Equal(t, 1, rec.Count(types.KindService))
	assert.Len(t, rec.PipelineStages("AppPipeline"), 3)

	var seen []events.EventType
	for len(sub) > 0 {
		seen = append(seen, (<-sub).Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventPlanStarted,
		events.EventCommonPlanned,
		events.EventStagePlanned,
		events.EventDeployStageAdded,
		events.EventStageFailed,
		events.EventPlanFailed,
	}, seen)
}

func TestBuildRejectsRepeatedStage(t *testing.T) {
	cfg := parse(t, common+twoStages)
	cfg.Stages = append(cfg.Stages, cfg.Stages[0])

	d, rec := newDriver(defaultOptions())
	_, err := d.Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage test is configured twice")

	var names []string
	for _, stage := range (*rec).PipelineStages("AppPipeline") {
		names = append(names, stage.Name)
	}
	assert.Equal(t, []string{"Source", "Build", "test-deploy", "prod-deploy"}, names)
	assert.Equal(t, 2, (*rec).Count(types.KindService), "repeated stage declares nothing")
}

func TestBuildLogsStageWiring(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true, Output: &buf})
	t.Cleanup(func() {
		log.Init(log.Config{Level: log.InfoLevel, Output: io.Discard})
	})

	d, _ := newDriver(defaultOptions())
	_, err := d.Build(context.Background(), parse(t, common+twoStages))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"Stage wired into pipeline"`)
	assert.Contains(t, out, `"stage":"prod"`)
	assert.Contains(t, out, `"fqdn":"app.example.com"`)
}

func TestBuildPublishesCompletion(t *testing.T) {
	broker := events.NewBroker()
	sub := broker.Subscribe()
	opts := defaultOptions()
	opts.Broker = broker
	d, _ := newDriver(opts)

	broker.Start()
	topo, err := d.Build(context.Background(), parse(t, common+twoStages))
	broker.Stop()
	require.NoError(t, err)

	var last *events.Event
	count := 0
	for len(sub) > 0 {
		last = <-sub
		assert.Equal(t, topo.ID, last.PlanID)
		count++
	}
	// started, common, 2 x (planned, deploy added), infra, complete
	assert.Equal(t, 8, count)
	assert.Equal(t, MaxEvents(2), count)
	require.NotNil(t, last)
	assert.Equal(t, events.EventPlanCompleted, last.Type)
}

func TestBuildProviderFactoryError(t *testing.T) {
	d := NewDriver(func(Stacks) (provider.Provider, error) {
		return nil, errors.New("no credentials")
	}, defaultOptions())

	_, err := d.Build(context.Background(), parse(t, common+twoStages))
	assert.ErrorContains(t, err, "no credentials")
}

func TestBuildCancelled(t *testing.T) {
	d, _ := newDriver(defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Build(ctx, parse(t, common+twoStages))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLoadsConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte(common+twoStages), 0o600))

	d, _ := newDriver(defaultOptions())
	topo, err := d.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, topo.ConfigPath)

	_, err = d.Run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, config.ErrParse)
}

func TestSummarizeAndRecord(t *testing.T) {
	d, _ := newDriver(defaultOptions())
	topo, err := d.Build(context.Background(), parse(t, common+twoStages))
	require.NoError(t, err)

	s := Summarize(topo)
	require.Len(t, s.Stages, 2)
	assert.Equal(t, "app.example.com", s.Stages[1].FQDN)
	assert.True(t, s.Stages[1].Approval)
	assert.Equal(t, []string{"POSTGRES_PASSWORD"}, s.Stages[0].Secrets)
	assert.Equal(t, StageLine{Name: "prod-deploy", Actions: []string{"prod-stage-approval", "prod-deploy"}}, s.AppPipeline[3])

	rec := Record(topo, []byte("{}"), 42)
	assert.Equal(t, topo.ID, rec.ID)
	assert.Equal(t, []string{"test", "prod"}, rec.Stages)
	assert.Equal(t, []string{"Source", "Build", "test-deploy", "prod-deploy"}, rec.PipelineOrder)
	assert.Equal(t, 42, rec.ResourceCount)
}
