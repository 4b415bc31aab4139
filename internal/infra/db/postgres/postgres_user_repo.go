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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `
id, phone, invited_by, subscription_type, subscription_start, subscription_end,
chat_count, registered_at, last_active_at`

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, phone, invited_by, subscription_type, subscription_start, subscription_end,
  chat_count, registered_at, last_active_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  phone=$2, last_active_at=$9;`
	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.Phone, u.InvitedBy, u.SubscriptionType, u.SubscriptionStart, u.SubscriptionEnd,
		u.ChatCount, u.RegisteredAt, u.LastActiveAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE phone=$1;`, phone)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Phone, &u.InvitedBy, &u.SubscriptionType, &u.SubscriptionStart, &u.SubscriptionEnd,
		&u.ChatCount, &u.RegisteredAt, &u.LastActiveAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// IncrementChatCount bumps the lifetime counter and returns the new value.
// RETURNING keeps the read-modify-write in one statement, so concurrent
// turns never lose an increment.
func (r *PostgresUserRepo) IncrementChatCount(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `
UPDATE users SET chat_count = chat_count + 1, last_active_at = NOW()
 WHERE id = $1
RETURNING chat_count;`
	row := pickRow(ctx, r.pool, tx, q, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("increment chat count: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) UpdateSubscriptionFields(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
UPDATE users SET subscription_type=$2, subscription_start=$3, subscription_end=$4
 WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, u.ID, u.SubscriptionType, u.SubscriptionStart, u.SubscriptionEnd)
	if err != nil {
		return fmt.Errorf("update subscription fields: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users;`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+userColumns+` FROM users ORDER BY registered_at ASC OFFSET $1 LIMIT $2;`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Phone, &u.InvitedBy, &u.SubscriptionType, &u.SubscriptionStart, &u.SubscriptionEnd,
			&u.ChatCount, &u.RegisteredAt, &u.LastActiveAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
