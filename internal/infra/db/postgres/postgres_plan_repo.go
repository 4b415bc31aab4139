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

// Ensure interface compliance
var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, price_cents, duration_days, chat_limit, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
  SET name = EXCLUDED.name,
      active = EXCLUDED.active;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.PriceCents, p.DurationDays, p.ChatLimit, p.Active, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `
SELECT id, name, price_cents, duration_days, chat_limit, active, created_at
  FROM plans WHERE id = $1;`
	row := pickRow(ctx, r.pool, tx, q, id)
	var p model.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.DurationDays, &p.ChatLimit, &p.Active, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &p, nil
}

func (r *PostgresPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `
SELECT id, name, price_cents, duration_days, chat_limit, active, created_at
  FROM plans WHERE active ORDER BY price_cents ASC;`
	return r.list(ctx, tx, q)
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `
SELECT id, name, price_cents, duration_days, chat_limit, active, created_at
  FROM plans ORDER BY created_at ASC;`
	return r.list(ctx, tx, q)
}

func (r *PostgresPlanRepo) list(ctx context.Context, tx repository.Tx, q string) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.DurationDays, &p.ChatLimit, &p.Active, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// Deactivate hides a plan from new purchases. Plans are never deleted:
// issued codes and subscription history keep referencing them.
func (r *PostgresPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE plans SET active = FALSE WHERE id = $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("deactivate plan: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
