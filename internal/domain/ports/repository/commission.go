package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// CommissionRepository stores the append-only commission ledger.
//
// Insert reports whether the row was actually written: a false return with a
// nil error means the (activation_code_id, level) pair already existed, which
// is how re-running settlement for the same activation stays a no-op.
type CommissionRepository interface {
	Insert(ctx context.Context, tx Tx, rec *model.CommissionRecord) (inserted bool, err error)
	ListByInviter(ctx context.Context, tx Tx, inviterUserID string, offset, limit int) ([]*model.CommissionRecord, error)
	SumByInviter(ctx context.Context, tx Tx, inviterUserID string) (int64, error)
	SumAll(ctx context.Context, tx Tx) (int64, error)
}
