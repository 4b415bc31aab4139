package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// PlanRepository stores the plan catalog. Plans referenced by issued codes
// are treated as immutable; Deactivate hides a plan from new purchases
// without touching history.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	Deactivate(ctx context.Context, tx Tx, id string) error
}
