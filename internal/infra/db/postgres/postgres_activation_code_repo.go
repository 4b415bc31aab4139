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

var _ repository.ActivationCodeRepository = (*PostgresActivationCodeRepo)(nil)

type PostgresActivationCodeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresActivationCodeRepo(pool *pgxpool.Pool) *PostgresActivationCodeRepo {
	return &PostgresActivationCodeRepo{pool: pool}
}

const codeColumns = `
id, code, plan_id, is_used, used_by_user_id, activated_at, created_at, expires_at`

func (r *PostgresActivationCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.ActivationCode) error {
	const q = `
INSERT INTO activation_codes (
  id, code, plan_id, is_used, used_by_user_id, activated_at, created_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.Code, c.PlanID, c.IsUsed, c.UsedByUserID, c.ActivatedAt, c.CreatedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save activation code: %w", err)
	}
	return nil
}

func (r *PostgresActivationCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationCode, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT `+codeColumns+` FROM activation_codes WHERE code=$1;`, code)
	return scanCode(row)
}

func scanCode(row pgx.Row) (*model.ActivationCode, error) {
	var c model.ActivationCode
	if err := row.Scan(&c.ID, &c.Code, &c.PlanID, &c.IsUsed, &c.UsedByUserID, &c.ActivatedAt, &c.CreatedAt, &c.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan activation code: %w", err)
	}
	return &c, nil
}

// Consume flips the code to used in one conditional update. The WHERE
// clause carries both guards, so exactly one concurrent caller sees a row
// come back; everyone else falls through to the diagnostic lookup.
func (r *PostgresActivationCodeRepo) Consume(ctx context.Context, tx repository.Tx, code, userID string, now time.Time) (*model.ActivationCode, error) {
	const q = `
UPDATE activation_codes
   SET is_used = TRUE, used_by_user_id = $2, activated_at = $3
 WHERE code = $1 AND is_used = FALSE AND expires_at > $3
RETURNING ` + codeColumns + `;`
	row := pickRow(ctx, r.pool, tx, q, code, userID, now)
	c, err := scanCode(row)
	if err == nil {
		return c, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}

	// Lost: read the row to say why.
	existing, ferr := r.FindByCode(ctx, tx, code)
	if ferr != nil {
		return nil, ferr // includes ErrNotFound for unknown codes
	}
	if existing.IsUsed {
		return nil, domain.ErrCodeAlreadyUsed
	}
	return nil, domain.ErrCodeExpired
}

func (r *PostgresActivationCodeRepo) ListByPlan(ctx context.Context, tx repository.Tx, planID string, onlyUnused bool) ([]*model.ActivationCode, error) {
	q := `SELECT ` + codeColumns + ` FROM activation_codes WHERE plan_id=$1`
	if onlyUnused {
		q += ` AND is_used = FALSE`
	}
	q += ` ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, planID)
	if err != nil {
		return nil, fmt.Errorf("list activation codes: %w", err)
	}
	defer rows.Close()
	var out []*model.ActivationCode
	for rows.Next() {
		var c model.ActivationCode
		if err := rows.Scan(&c.ID, &c.Code, &c.PlanID, &c.IsUsed, &c.UsedByUserID, &c.ActivatedAt, &c.CreatedAt, &c.ExpiresAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
