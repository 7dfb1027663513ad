package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stagehand/pkg/types"
)

func newStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetPlan(t *testing.T) {
	s := newStore(t)
	plan := &types.PlanRecord{
		ID:            "7d0f6c1e-0000-4000-8000-000000000001",
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ConfigPath:    "configs/env.yaml",
		Stages:        []string{"test", "prod"},
		PipelineOrder: []string{"Source", "Build", "test-deploy", "prod-deploy"},
		ResourceCount: 27,
		Document:      []byte(`{"resources":[]}`),
	}
	require.NoError(t, s.SavePlan(plan))

	got, err := s.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan, got)
}

func TestGetPlanNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetPlan("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeletePlan("missing"), ErrNotFound)
}

func TestSavePlanRequiresID(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.SavePlan(&types.PlanRecord{}))
}

func TestListPlansNewestFirst(t *testing.T) {
	s := newStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// ids sort opposite to creation time
	require.NoError(t, s.SavePlan(&types.PlanRecord{ID: "c", CreatedAt: base}))
	require.NoError(t, s.SavePlan(&types.PlanRecord{ID: "a", CreatedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, s.SavePlan(&types.PlanRecord{ID: "b", CreatedAt: base.Add(time.Hour)}))

	plans, err := s.ListPlans()
	require.NoError(t, err)
	var ids []string
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, s.DeletePlan("b"))
	plans, err = s.ListPlans()
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SavePlan(&types.PlanRecord{ID: "kept", Stages: []string{"test"}}))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetPlan("kept")
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, got.Stages)
}
