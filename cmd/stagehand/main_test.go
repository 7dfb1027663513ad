package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stagehand/pkg/storage"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", "../../configs/env.yaml", "--log-level", "error"}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestValidateExampleConfig(t *testing.T) {
	out := execute(t, "validate")

	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Stage test: backstage-test\n")
	assert.Contains(t, out, "Stage prod: backstage (approval required)")
}

func TestPlanJSON(t *testing.T) {
	dataDir := t.TempDir()
	out := execute(t, "plan",
		"--format", "json",
		"--record",
		"--data-dir", dataDir,
		"--app-buildspec", "../../configs/app-buildspec.yaml",
	)

	var plan struct {
		Summary struct {
			ID          string   `json:"id"`
			Stacks      []string `json:"stacks"`
			AppPipeline []struct {
				Name    string   `json:"name"`
				Actions []string `json:"actions"`
			} `json:"appPipeline"`
		} `json:"summary"`
		Document struct {
			Resources []map[string]any `json:"resources"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))

	assert.Equal(t, []string{"backstage-pipeline", "backstage"}, plan.Summary.Stacks)
	var stages []string
	for _, s := range plan.Summary.AppPipeline {
		stages = append(stages, s.Name)
	}
	assert.Equal(t, []string{"Source", "Build", "test-deploy", "prod-deploy"}, stages)
	assert.Equal(t, []string{"prod-stage-approval", "prod-deploy"}, plan.Summary.AppPipeline[3].Actions)
	assert.NotEmpty(t, plan.Document.Resources)

	store, err := storage.NewBoltStore(filepath.Clean(dataDir))
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.GetPlan(plan.Summary.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "prod"}, rec.Stages)
	assert.Equal(t, len(plan.Document.Resources), rec.ResourceCount)
}

func TestPlanEventsReachStderr(t *testing.T) {
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetErr(nil)
		require.NoError(t, planCmd.Flags().Set("events", "false"))
	})

	execute(t, "plan", "--events", "--app-buildspec", "../../configs/app-buildspec.yaml")

	out := stderr.String()
	assert.Equal(t, 8, strings.Count(out, "\n"), "two stages publish every event")
	assert.Contains(t, out, "deploy-stage.added")
	assert.Contains(t, out, "topology.complete")
}

func TestMetricsWrittenAfterFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.prom")
	t.Cleanup(func() {
		require.NoError(t, rootCmd.PersistentFlags().Set("metrics-file", ""))
	})

	rootCmd.SetArgs([]string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--log-level", "error",
		"--metrics-file", path,
		"validate",
	})
	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stagehand_stages_planned_total")
}
