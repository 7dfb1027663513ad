package topology

import (
	"time"

	"github.com/cuemby/stagehand/pkg/types"
)

// Summary is the operator-facing view of a topology
type Summary struct {
	ID            string         `json:"id" yaml:"id"`
	CreatedAt     time.Time      `json:"createdAt" yaml:"createdAt"`
	Stacks        []string       `json:"stacks" yaml:"stacks"`
	Stages        []StageSummary `json:"stages" yaml:"stages"`
	AppPipeline   []StageLine    `json:"appPipeline" yaml:"appPipeline"`
	InfraPipeline []StageLine    `json:"infraPipeline" yaml:"infraPipeline"`
}

// StageSummary describes one planned stage
type StageSummary struct {
	Name     string   `json:"name" yaml:"name"`
	FQDN     string   `json:"fqdn" yaml:"fqdn"`
	Secrets  []string `json:"secrets" yaml:"secrets"`
	Approval bool     `json:"approval" yaml:"approval"`
	Notify   []string `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// StageLine is a pipeline stage with its actions in run order
type StageLine struct {
	Name    string   `json:"name" yaml:"name"`
	Actions []string `json:"actions" yaml:"actions"`
}

// Summarize flattens a topology for display
func Summarize(t *types.Topology) Summary {
	s := Summary{
		ID:        t.ID,
		CreatedAt: t.CreatedAt,
		Stacks:    append([]string(nil), t.Stacks...),
	}
	for _, b := range t.Stages {
		s.Stages = append(s.Stages, StageSummary{
			Name:     b.Name,
			FQDN:     b.FQDN,
			Secrets:  b.Secrets.Names(),
			Approval: b.Approval,
			Notify:   b.ApprovalEmails,
		})
	}
	s.AppPipeline = lines(t.AppPipeline)
	s.InfraPipeline = lines(t.InfraPipeline)
	return s
}

func lines(p *types.Pipeline) []StageLine {
	if p == nil {
		return nil
	}
	out := make([]StageLine, 0, len(p.Stages))
	for _, stage := range p.Stages {
		line := StageLine{Name: stage.Name}
		for _, a := range stage.Actions {
			line.Actions = append(line.Actions, a.Name)
		}
		out = append(out, line)
	}
	return out
}

// Record builds the history entry for a topology. document is the
// provider's rendered declaration log.
func Record(t *types.Topology, document []byte, resourceCount int) *types.PlanRecord {
	rec := &types.PlanRecord{
		ID:            t.ID,
		CreatedAt:     t.CreatedAt,
		ConfigPath:    t.ConfigPath,
		ResourceCount: resourceCount,
		Document:      document,
	}
	for _, b := range t.Stages {
		rec.Stages = append(rec.Stages, b.Name)
	}
	if t.AppPipeline != nil {
		rec.PipelineOrder = t.AppPipeline.StageNames()
	}
	return rec
}
