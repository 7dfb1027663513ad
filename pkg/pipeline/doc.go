/*
Package pipeline composes the two delivery pipelines of a topology.

The application pipeline builds the container image and rolls it out to
every stage. The infrastructure pipeline synthesizes the stacks from the
infrastructure repository and applies them as change sets.

# Application Pipeline

	┌─────────┐   ┌─────────┐   ┌──────────────┐   ┌──────────────────────┐
	│ Source  │──▶│  Build  │──▶│ test-deploy  │──▶│     prod-deploy      │
	│ Github- │   │ Docker- │   │ 1: deploy    │   │ 1: stage-approval    │
	│ Source  │   │ Build   │   │              │   │ 2: deploy            │
	└─────────┘   └─────────┘   └──────────────┘   └──────────────────────┘

The AppComposer is created with Source and Build in place. Each call to
AddDeployStage appends "<stage>-deploy". Within a deploy stage actions
share a run-order counter: the optional approval gate takes order 1 and
the ECS deploy action takes the next value, so approval always blocks the
rollout it guards.

AddDeployStage is not idempotent. Calling it twice for the same stage
appends two identically named stages; the topology driver calls it exactly
once per configured stage.

# Infrastructure Pipeline

	Source ──▶ Synth ──▶ Deploy-<pipeline stack> ──▶ Deploy-<app stack>

Each Deploy-<stack> stage creates a change set from
"<stack>.template.json" at run order 1 and executes it at run order 2.
The pipeline stack is deployed first so the pipeline can update itself
before it touches the application stack.

# Usage

	composer, err := pipeline.NewAppComposer(ctx, p, cfg, common, buildSpec)
	if err != nil {
		return err
	}
	if err := composer.AddDeployStage(ctx, "prod", service, true, emails); err != nil {
		return err
	}

	infra, err := pipeline.ComposeInfra(ctx, p, cfg, "portal-pipeline",
		[]string{"portal-pipeline", "portal"}, "")
*/
package pipeline
