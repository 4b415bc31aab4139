package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// BalanceRepository holds per-user withdrawable balances.
//
// DebitIfSufficient must be an atomic conditional decrement (guarded by
// amount_cents >= amount in the same statement); a false return means the
// balance would have gone negative and nothing changed.
type BalanceRepository interface {
	Get(ctx context.Context, tx Tx, userID string) (*model.Balance, error)
	Credit(ctx context.Context, tx Tx, userID string, amountCents int64) error
	DebitIfSufficient(ctx context.Context, tx Tx, userID string, amountCents int64) (bool, error)
}
