package storage

import (
	"errors"

	"github.com/cuemby/stagehand/pkg/types"
)

// ErrNotFound is returned when a plan ID has no record
var ErrNotFound = errors.New("plan not found")

// Store keeps the history of recorded plans
type Store interface {
	SavePlan(plan *types.PlanRecord) error
	GetPlan(id string) (*types.PlanRecord, error)
	// ListPlans returns every plan, newest first
	ListPlans() ([]*types.PlanRecord, error)
	DeletePlan(id string) error

	Close() error
}
