package pipeline

import (
	"context"
	"fmt"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Infrastructure pipeline names
const (
	IDInfraPipeline     = "InfraPipeline"
	IDInfraBuildProject = "InfraSynthProject"

	StageSynth    = "Synth"
	ActionSynth   = "Synth"
	ArtifactSynth = "SynthOutput"

	// DefaultInfraBuildSpec is read from the infrastructure repository
	DefaultInfraBuildSpec = "./configs/infra-buildspec.yml"
)

// ComposeInfra declares the self-deploying infrastructure pipeline:
// Source, Synth, then one change-set stage per stack in the given order.
func ComposeInfra(ctx context.Context, p provider.Provider, cfg *config.Configuration, pipelineName string, stacks []string, buildSpecFile string) (*types.Pipeline, error) {
	c := cfg.Common
	if buildSpecFile == "" {
		buildSpecFile = DefaultInfraBuildSpec
	}

	project, err := p.BuildProject(ctx, provider.BuildProjectSpec{
		ID:            IDInfraBuildProject,
		Name:          pipelineName,
		Stack:         types.StackInfra,
		BuildSpecFile: buildSpecFile,
		Statements: []types.PolicyStatement{{
			Actions:   []string{"*"},
			Resources: []string{"*"},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare synth project: %w", err)
	}

	handle, err := p.Pipeline(ctx, provider.PipelineSpec{
		ID:               IDInfraPipeline,
		Name:             pipelineName,
		Stack:            types.StackInfra,
		CrossAccountKeys: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare infra pipeline: %w", err)
	}

	stages := []types.PipelineStage{
		SourceStage(c.Get(config.KeyCodeStarConnARN), c.Get(config.KeyGitHubOrg), c.Get(config.KeyGitHubInfraRepo)),
		{
			Name: StageSynth,
			Actions: []types.Action{{
				Name:     ActionSynth,
				Kind:     types.ActionBuild,
				RunOrder: 1,
				Input:    ArtifactSource,
				Outputs:  []string{ArtifactSynth},
				Build:    &types.BuildConfig{Project: project},
			}},
		},
	}
	for _, stack := range stacks {
		stages = append(stages, ChangeSetStage(stack))
	}

	pipeline := &types.Pipeline{Name: pipelineName, Handle: handle}
	for _, stage := range stages {
		if err := p.AddPipelineStage(ctx, handle, stage); err != nil {
			return nil, fmt.Errorf("failed to add pipeline stage %s: %w", stage.Name, err)
		}
		pipeline.Stages = append(pipeline.Stages, stage)
	}
	return pipeline, nil
}

// ChangeSetStage deploys one stack by creating a change set from the
// synthesized template and executing it afterwards.
func ChangeSetStage(stack string) types.PipelineStage {
	changeSet := "Deploy-" + stack
	return types.PipelineStage{
		Name: "Deploy-" + stack,
		Actions: []types.Action{
			{
				Name:     fmt.Sprintf("Create-%s-ChangeSet", stack),
				Kind:     types.ActionChangeSetCreate,
				RunOrder: 1,
				Input:    ArtifactSynth,
				ChangeSet: &types.ChangeSetConfig{
					StackName:        stack,
					ChangeSetName:    changeSet,
					TemplatePath:     stack + ".template.json",
					AdminPermissions: true,
				},
			},
			{
				Name:     fmt.Sprintf("Exec-%s-ChangeSet", stack),
				Kind:     types.ActionChangeSetExecute,
				RunOrder: 2,
				ChangeSet: &types.ChangeSetConfig{
					StackName:     stack,
					ChangeSetName: changeSet,
				},
			},
		},
	}
}
