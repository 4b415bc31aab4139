package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// WithdrawalRepository stores withdrawal requests.
//
// Transition is conditional on the current status (WHERE status = from) so
// two operators acting on the same request cannot both win; a false return
// means the row was not in the expected source state.
type WithdrawalRepository interface {
	Save(ctx context.Context, tx Tx, w *model.WithdrawalRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.WithdrawalRequest, error)
	Transition(ctx context.Context, tx Tx, id string, from, to model.WithdrawalStatus, rejectionReason *string, debited bool) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, tx Tx, status model.WithdrawalStatus, offset, limit int) ([]*model.WithdrawalRequest, error)
}
