package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `
id, user_id, plan_id, plan_name, status, period_start, period_end, activation_code_id, created_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_id, plan_name, status, period_start, period_end, activation_code_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  status=$5, period_end=$7;`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.PlanName, s.Status, s.PeriodStart, s.PeriodEnd, s.ActivationCodeID, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT `+subColumns+` FROM subscriptions WHERE id=$1;`, id)
	return scanSub(row)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='active'
 ORDER BY created_at DESC
 LIMIT 1;`
	row := pickRow(ctx, r.pool, tx, q, userID)
	return scanSub(row)
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &s.Status, &s.PeriodStart, &s.PeriodEnd, &s.ActivationCodeID, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}

// CancelActiveByUser supersedes every active row of the user in one
// statement. Runs inside the activation transaction so the cancel and the
// new active insert land together.
func (r *subscriptionRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `UPDATE subscriptions SET status='cancelled' WHERE user_id=$1 AND status='active';`
	ct, err := execSQL(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("cancel active subscriptions: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// MarkExpired flips an active row to expired. Conditional on status so a
// concurrent cancel or a second resolver pass is a harmless no-op.
func (r *subscriptionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE subscriptions SET status='expired' WHERE id=$1 AND status='active';`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("mark subscription expired: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ExpireLapsed is the sweeper's bulk form of MarkExpired. Times-card rows
// have no period_end and are never touched here.
func (r *subscriptionRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE subscriptions SET status='expired' WHERE status='active' AND period_end IS NOT NULL AND period_end <= $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, fmt.Errorf("expire lapsed subscriptions: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &s.Status, &s.PeriodStart, &s.PeriodEnd, &s.ActivationCodeID, &s.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) CountActiveByPlanName(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT plan_name, COUNT(*) FROM subscriptions WHERE status='active' GROUP BY plan_name;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("count active by plan: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
