package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

var _ repository.BalanceRepository = (*balanceRepo)(nil)

type balanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *balanceRepo {
	return &balanceRepo{pool: pool}
}

func (r *balanceRepo) Get(ctx context.Context, tx repository.Tx, userID string) (*model.Balance, error) {
	const q = `SELECT user_id, amount_cents, updated_at FROM balances WHERE user_id=$1;`
	row := pickRow(ctx, r.pool, tx, q, userID)
	var b model.Balance
	if err := row.Scan(&b.UserID, &b.AmountCents, &b.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// Credit upserts: a first-time inviter gets a row created with the amount.
func (r *balanceRepo) Credit(ctx context.Context, tx repository.Tx, userID string, amountCents int64) error {
	const q = `
INSERT INTO balances (user_id, amount_cents, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE
  SET amount_cents = balances.amount_cents + $2, updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID, amountCents)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// DebitIfSufficient decrements only when the guard in the WHERE clause
// holds; zero rows affected means the funds were not there and nothing
// changed. Balances can never go negative through this path.
func (r *balanceRepo) DebitIfSufficient(ctx context.Context, tx repository.Tx, userID string, amountCents int64) (bool, error) {
	const q = `
UPDATE balances
   SET amount_cents = amount_cents - $2, updated_at = NOW()
 WHERE user_id = $1 AND amount_cents >= $2;`
	ct, err := execSQL(ctx, r.pool, tx, q, userID, amountCents)
	if err != nil {
		return false, fmt.Errorf("debit balance: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
