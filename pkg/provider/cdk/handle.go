package cdk

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipeline"

	"github.com/cuemby/stagehand/pkg/types"
)

// handle wraps a construct. Attributes are CDK tokens that resolve at
// deploy time.
type handle struct {
	id        string
	kind      types.ResourceKind
	construct any
	attrs     map[string]*string
}

func (h *handle) LogicalID() string        { return h.id }
func (h *handle) Kind() types.ResourceKind { return h.kind }

func (h *handle) Attr(name string) string {
	if v, ok := h.attrs[name]; ok && v != nil {
		return *v
	}
	return ""
}

// pipelineHandle tracks the artifacts a pipeline's actions pass around
type pipelineHandle struct {
	handle
	artifacts map[string]awscodepipeline.Artifact
}

func (h *pipelineHandle) artifact(name string) awscodepipeline.Artifact {
	if a, ok := h.artifacts[name]; ok {
		return a
	}
	a := awscodepipeline.Artifact_Artifact(&name)
	h.artifacts[name] = a
	return a
}

// as extracts the construct behind h as T
func as[T any](h types.Handle) (T, error) {
	var zero T
	var construct any
	switch v := h.(type) {
	case *handle:
		construct = v.construct
	case *pipelineHandle:
		construct = v.construct
	case nil:
		return zero, fmt.Errorf("missing reference")
	default:
		return zero, fmt.Errorf("handle %s was not declared by this provider", h.LogicalID())
	}

	c, ok := construct.(T)
	if !ok {
		return zero, fmt.Errorf("handle %s has the wrong kind %s", h.LogicalID(), h.Kind())
	}
	return c, nil
}
