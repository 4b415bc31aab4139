package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

var _ repository.CommissionRepository = (*commissionRepo)(nil)

type commissionRepo struct {
	pool *pgxpool.Pool
}

func NewCommissionRepo(pool *pgxpool.Pool) *commissionRepo {
	return &commissionRepo{pool: pool}
}

// Insert appends one ledger row. The unique index on
// (activation_code_id, level) plus ON CONFLICT DO NOTHING makes replays a
// no-op; RowsAffected tells the caller whether this run actually inserted.
func (r *commissionRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.CommissionRecord) (bool, error) {
	const q = `
INSERT INTO commission_records (
  id, inviter_user_id, invited_user_id, plan_id, level, amount_cents, percentage, activation_code_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (activation_code_id, level) DO NOTHING;`
	ct, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.InviterUserID, rec.InvitedUserID, rec.PlanID, rec.Level,
		rec.AmountCents, rec.Percentage, rec.ActivationCodeID, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert commission: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *commissionRepo) ListByInviter(ctx context.Context, tx repository.Tx, inviterUserID string, offset, limit int) ([]*model.CommissionRecord, error) {
	const q = `
SELECT id, inviter_user_id, invited_user_id, plan_id, level, amount_cents, percentage, activation_code_id, created_at
  FROM commission_records
 WHERE inviter_user_id=$1
 ORDER BY created_at DESC
OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, inviterUserID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()
	var out []*model.CommissionRecord
	for rows.Next() {
		var c model.CommissionRecord
		if err := rows.Scan(&c.ID, &c.InviterUserID, &c.InvitedUserID, &c.PlanID, &c.Level,
			&c.AmountCents, &c.Percentage, &c.ActivationCodeID, &c.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *commissionRepo) SumByInviter(ctx context.Context, tx repository.Tx, inviterUserID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_cents), 0) FROM commission_records WHERE inviter_user_id=$1;`
	row := pickRow(ctx, r.pool, tx, q, inviterUserID)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum commissions: %w", err)
	}
	return sum, nil
}

func (r *commissionRepo) SumAll(ctx context.Context, tx repository.Tx) (int64, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(amount_cents), 0) FROM commission_records;`)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum all commissions: %w", err)
	}
	return sum, nil
}
