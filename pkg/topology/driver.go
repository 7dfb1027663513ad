package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/events"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/metrics"
	"github.com/cuemby/stagehand/pkg/pipeline"
	"github.com/cuemby/stagehand/pkg/planner"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Stacks names the two deployment units of a topology
type Stacks struct {
	App   string
	Infra string
}

// StacksFor derives stack names from TAG_STACK_NAME
func StacksFor(cfg *config.Configuration) Stacks {
	name := cfg.Common.Get(config.KeyTagStackName)
	return Stacks{App: name, Infra: name + "-pipeline"}
}

// Ordered returns the stacks in deployment order: the pipeline stack
// first, so the infrastructure pipeline updates itself before the app.
func (s Stacks) Ordered() []string {
	return []string{s.Infra, s.App}
}

// MaxEvents is the most events one build publishes for a configuration
// with the given number of stages. Size event subscribers with it to
// receive a whole build without drops.
func MaxEvents(stages int) int {
	// started, common, per stage planned and deploy added, infra, complete
	return 2*stages + 4
}

// ProviderFactory creates the provider for a configuration's stacks. The
// driver calls it once per build, after the configuration is loaded.
type ProviderFactory func(stacks Stacks) (provider.Provider, error)

// Options configures a Driver
type Options struct {
	Planner planner.Options

	// AppBuildSpec is inlined into the application build project
	AppBuildSpec map[string]any
	// InfraBuildSpecFile is resolved inside the infrastructure repository
	InfraBuildSpecFile string

	// Broker receives progress events when set
	Broker *events.Broker
}

// Driver runs the planners and composers in their fixed order
type Driver struct {
	newProvider ProviderFactory
	opts        Options
	logger      zerolog.Logger
}

// NewDriver creates a topology driver
func NewDriver(newProvider ProviderFactory, opts Options) *Driver {
	return &Driver{
		newProvider: newProvider,
		opts:        opts,
		logger:      log.WithComponent("topology"),
	}
}

// Run loads the configuration at path and builds its topology
func (d *Driver) Run(ctx context.Context, path string) (*types.Topology, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return d.Build(ctx, cfg)
}

// Build declares the whole topology for a validated configuration: common
// resources once, the application pipeline, then each stage in
// configuration order followed by its deploy stage, and finally the
// infrastructure pipeline. The first error aborts the build; resources
// already declared are left to the provider.
func (d *Driver) Build(ctx context.Context, cfg *config.Configuration) (*types.Topology, error) {
	timer := metrics.NewTimer()
	id := uuid.New().String()
	logger := log.WithPlanID(d.logger, id)
	stacks := StacksFor(cfg)

	d.publish(id, events.EventPlanStarted, fmt.Sprintf("planning %d stages from %s", len(cfg.Stages), cfg.Path), nil)

	topo, err := d.build(ctx, id, cfg, stacks, logger)
	if err != nil {
		d.publish(id, events.EventPlanFailed, err.Error(), nil)
		logger.Error().Err(err).Msg("Topology build failed")
		return nil, err
	}

	timer.ObserveDuration(metrics.PlanDuration)
	d.publish(id, events.EventPlanCompleted, fmt.Sprintf("planned %d stages", len(topo.Stages)), map[string]string{
		"duration": timer.Duration().String(),
	})
	logger.Info().
		Int("stages", len(topo.Stages)).
		Strs("pipeline", topo.AppPipeline.StageNames()).
		Dur("duration", timer.Duration()).
		Msg("Topology complete")
	return topo, nil
}

func (d *Driver) build(ctx context.Context, id string, cfg *config.Configuration, stacks Stacks, logger zerolog.Logger) (*types.Topology, error) {
	raw, err := d.newProvider(stacks)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	p := provider.Instrument(raw)

	topo := &types.Topology{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		ConfigPath: cfg.Path,
		Stacks:     stacks.Ordered(),
		Tags: []types.Tag{
			{Key: "Name", Value: stacks.App},
			{Key: "Product", Value: cfg.Common.Product()},
		},
	}
	for _, tag := range topo.Tags {
		p.Tag(tag.Key, tag.Value)
	}

	plan := planner.New(p, cfg, d.opts.Planner)
	common, err := plan.BuildCommon(ctx)
	if err != nil {
		return nil, err
	}
	topo.Common = common
	d.publish(id, events.EventCommonPlanned, "common resources declared", nil)

	composer, err := pipeline.NewAppComposer(ctx, p, cfg, common, d.opts.AppBuildSpec)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// AddDeployStage would append a second stage with the same name
		if seen[stage.Name] {
			return nil, fmt.Errorf("stage %s is configured twice", stage.Name)
		}
		seen[stage.Name] = true

		bundle, err := plan.BuildStage(ctx, stage, common)
		if err != nil {
			d.publish(id, events.EventStageFailed, err.Error(), map[string]string{"stage": stage.Name})
			return nil, fmt.Errorf("failed to plan stage %s: %w", stage.Name, err)
		}
		metrics.StagesPlanned.Inc()
		d.publish(id, events.EventStagePlanned, "stage "+stage.Name+" planned", map[string]string{
			"stage": stage.Name,
			"fqdn":  bundle.FQDN,
		})

		if err := composer.AddDeployStage(ctx, stage.Name, bundle.Service, bundle.Approval, bundle.ApprovalEmails); err != nil {
			return nil, err
		}
		d.publish(id, events.EventDeployStageAdded, stage.Name+"-deploy added", map[string]string{
			"stage":    stage.Name,
			"approval": fmt.Sprintf("%t", bundle.Approval),
		})

		topo.Stages = append(topo.Stages, bundle)
		sl := log.WithStage(logger, stage.Name)
		sl.Debug().Str("fqdn", bundle.FQDN).Msg("Stage wired into pipeline")
	}
	topo.AppPipeline = composer.Pipeline()

	infra, err := pipeline.ComposeInfra(ctx, p, cfg, stacks.Infra, stacks.Ordered(), d.opts.InfraBuildSpecFile)
	if err != nil {
		return nil, err
	}
	topo.InfraPipeline = infra
	d.publish(id, events.EventInfraComposed, infra.Name+" composed", nil)

	return topo, nil
}

func (d *Driver) publish(planID string, t events.EventType, msg string, meta map[string]string) {
	if d.opts.Broker == nil {
		return
	}
	d.opts.Broker.Publish(&events.Event{
		PlanID:   planID,
		Type:     t,
		Message:  msg,
		Metadata: meta,
	})
}
