package engine

import (
	"context"

	"axiapac.com/payroll/model"
)

// Remote is the persistent store as seen by the engine.
type Remote interface {
	// FetchChildren returns the children of parent. RootKey lists Timesheets.
	FetchChildren(ctx context.Context, parent model.Key) ([]model.Node, error)
	CreateEntity(ctx context.Context, draft model.Node) (*model.MutationResult, error)
	UpdateEntity(ctx context.Context, key model.Key, patch model.Patch) (*model.MutationResult, error)
	// DeleteEntity fails with apperr.ErrHasChildren when the entity has children.
	DeleteEntity(ctx context.Context, key model.Key) (*model.MutationResult, error)
	ProbeHasChildren(ctx context.Context, key model.Key) (bool, error)
}
