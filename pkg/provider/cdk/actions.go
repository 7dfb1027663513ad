package cdk

import (
	"context"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awscodebuild"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipeline"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipelineactions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/jsii-runtime-go"

	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

func (p *Provider) BuildProject(_ context.Context, spec provider.BuildProjectSpec) (types.Handle, error) {
	return p.declare("BuildProject", spec.ID, types.KindBuildProject, func() (any, map[string]*string, error) {
		var buildSpec awscodebuild.BuildSpec
		if spec.BuildSpec != nil {
			obj := spec.BuildSpec
			buildSpec = awscodebuild.BuildSpec_FromObject(&obj)
		} else {
			buildSpec = awscodebuild.BuildSpec_FromSourceFilename(jsii.String(spec.BuildSpecFile))
		}

		project := awscodebuild.NewPipelineProject(p.stack(spec.Stack), jsii.String(spec.ID), &awscodebuild.PipelineProjectProps{
			ProjectName: jsii.String(spec.Name),
			BuildSpec:   buildSpec,
			Environment: &awscodebuild.BuildEnvironment{
				BuildImage: awscodebuild.LinuxBuildImage_STANDARD_7_0(),
				Privileged: jsii.Bool(spec.Privileged),
			},
		})
		for _, name := range spec.ManagedPolicies {
			project.Role().AddManagedPolicy(awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String(name)))
		}
		for _, st := range spec.Statements {
			project.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
				Actions:   jsii.Strings(st.Actions...),
				Resources: jsii.Strings(st.Resources...),
			}))
		}
		return project, map[string]*string{types.AttrARN: project.ProjectArn()}, nil
	})
}

func (p *Provider) Pipeline(_ context.Context, spec provider.PipelineSpec) (h types.Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverAs("Pipeline", spec.ID, &err)

	pipeline := awscodepipeline.NewPipeline(p.stack(spec.Stack), jsii.String(spec.ID), &awscodepipeline.PipelineProps{
		PipelineName:     jsii.String(spec.Name),
		CrossAccountKeys: jsii.Bool(spec.CrossAccountKeys),
	})
	return &pipelineHandle{
		handle: handle{
			id:        spec.ID,
			kind:      types.KindPipeline,
			construct: pipeline,
			attrs:     map[string]*string{types.AttrARN: pipeline.PipelineArn()},
		},
		artifacts: make(map[string]awscodepipeline.Artifact),
	}, nil
}

// AddPipelineStage appends a stage and its actions. Artifacts are shared
// by name within one pipeline.
func (p *Provider) AddPipelineStage(_ context.Context, pipeline types.Handle, stage types.PipelineStage) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer recoverAs("AddPipelineStage", stage.Name, &err)

	ph, ok := pipeline.(*pipelineHandle)
	if !ok || ph == nil {
		return &provider.ProviderError{Op: "AddPipelineStage", Resource: stage.Name, Err: fmt.Errorf("not a pipeline declared by this provider")}
	}
	cp, err := as[awscodepipeline.Pipeline](ph)
	if err != nil {
		return provider.Wrap("AddPipelineStage", stage.Name, err)
	}

	actions := make([]awscodepipeline.IAction, 0, len(stage.Actions))
	for _, a := range stage.Actions {
		action, err := p.action(ph, a)
		if err != nil {
			return provider.Wrap("AddPipelineStage", stage.Name, fmt.Errorf("action %s: %w", a.Name, err))
		}
		actions = append(actions, action)
	}

	cp.AddStage(&awscodepipeline.StageOptions{
		StageName: jsii.String(stage.Name),
		Actions:   &actions,
	})
	return nil
}

func (p *Provider) action(ph *pipelineHandle, a types.Action) (awscodepipeline.IAction, error) {
	runOrder := jsii.Number(a.RunOrder)
	outputs := func() *[]awscodepipeline.Artifact {
		out := make([]awscodepipeline.Artifact, 0, len(a.Outputs))
		for _, name := range a.Outputs {
			out = append(out, ph.artifact(name))
		}
		return &out
	}

	switch a.Kind {
	case types.ActionSource:
		if a.Source == nil || len(a.Outputs) != 1 {
			return nil, fmt.Errorf("source action needs a source config and one output")
		}
		return awscodepipelineactions.NewCodeStarConnectionsSourceAction(&awscodepipelineactions.CodeStarConnectionsSourceActionProps{
			ActionName:    jsii.String(a.Name),
			RunOrder:      runOrder,
			ConnectionArn: jsii.String(a.Source.ConnectionARN),
			Owner:         jsii.String(a.Source.Owner),
			Repo:          jsii.String(a.Source.Repo),
			Branch:        jsii.String(a.Source.Branch),
			Output:        ph.artifact(a.Outputs[0]),
		}), nil

	case types.ActionBuild:
		if a.Build == nil {
			return nil, fmt.Errorf("build action needs a build config")
		}
		project, err := as[awscodebuild.IProject](a.Build.Project)
		if err != nil {
			return nil, err
		}
		env := make(map[string]*awscodebuild.BuildEnvironmentVariable, len(a.Build.Environment))
		for _, e := range a.Build.Environment {
			env[e.Name] = &awscodebuild.BuildEnvironmentVariable{Value: jsii.String(e.Value)}
		}
		return awscodepipelineactions.NewCodeBuildAction(&awscodepipelineactions.CodeBuildActionProps{
			ActionName:           jsii.String(a.Name),
			RunOrder:             runOrder,
			Project:              project,
			Input:                ph.artifact(a.Input),
			Outputs:              outputs(),
			EnvironmentVariables: &env,
		}), nil

	case types.ActionManualApproval:
		var emails []string
		if a.Approval != nil {
			emails = a.Approval.NotifyEmails
		}
		return awscodepipelineactions.NewManualApprovalAction(&awscodepipelineactions.ManualApprovalActionProps{
			ActionName:   jsii.String(a.Name),
			RunOrder:     runOrder,
			NotifyEmails: jsii.Strings(emails...),
		}), nil

	case types.ActionECSDeploy:
		if a.Deploy == nil {
			return nil, fmt.Errorf("deploy action needs a deploy config")
		}
		service, err := as[awsecs.IBaseService](a.Deploy.Service)
		if err != nil {
			return nil, err
		}
		return awscodepipelineactions.NewEcsDeployAction(&awscodepipelineactions.EcsDeployActionProps{
			ActionName: jsii.String(a.Name),
			RunOrder:   runOrder,
			Service:    service,
			Input:      ph.artifact(a.Input),
		}), nil

	case types.ActionChangeSetCreate:
		if a.ChangeSet == nil {
			return nil, fmt.Errorf("change set action needs a change set config")
		}
		return awscodepipelineactions.NewCloudFormationCreateReplaceChangeSetAction(&awscodepipelineactions.CloudFormationCreateReplaceChangeSetActionProps{
			ActionName:       jsii.String(a.Name),
			RunOrder:         runOrder,
			StackName:        jsii.String(a.ChangeSet.StackName),
			ChangeSetName:    jsii.String(a.ChangeSet.ChangeSetName),
			TemplatePath:     ph.artifact(a.Input).AtPath(jsii.String(a.ChangeSet.TemplatePath)),
			AdminPermissions: jsii.Bool(a.ChangeSet.AdminPermissions),
		}), nil

	case types.ActionChangeSetExecute:
		if a.ChangeSet == nil {
			return nil, fmt.Errorf("change set action needs a change set config")
		}
		return awscodepipelineactions.NewCloudFormationExecuteChangeSetAction(&awscodepipelineactions.CloudFormationExecuteChangeSetActionProps{
			ActionName:    jsii.String(a.Name),
			RunOrder:      runOrder,
			StackName:     jsii.String(a.ChangeSet.StackName),
			ChangeSetName: jsii.String(a.ChangeSet.ChangeSetName),
		}), nil
	}
	return nil, fmt.Errorf("unknown action kind %q", a.Kind)
}
