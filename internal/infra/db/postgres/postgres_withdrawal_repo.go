package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/security"
)

var _ repository.WithdrawalRepository = (*withdrawalRepo)(nil)

type withdrawalRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService // nil stores account info in plaintext
}

func NewWithdrawalRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *withdrawalRepo {
	return &withdrawalRepo{pool: pool, enc: enc}
}

const withdrawalColumns = `
id, user_id, amount_cents, payment_method, account_info, status, rejection_reason, debited, created_at, processed_at`

func (r *withdrawalRepo) Save(ctx context.Context, tx repository.Tx, w *model.WithdrawalRequest) error {
	account := w.AccountInfo
	if r.enc != nil {
		var err error
		if account, err = r.enc.Encrypt(account); err != nil {
			return fmt.Errorf("encrypt account info: %w", err)
		}
	}
	const q = `
INSERT INTO withdrawal_requests (
  id, user_id, amount_cents, payment_method, account_info, status, rejection_reason, debited, created_at, processed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err := execSQL(ctx, r.pool, tx, q,
		w.ID, w.UserID, w.AmountCents, w.PaymentMethod, account, w.Status,
		w.RejectionReason, w.Debited, w.CreatedAt, w.ProcessedAt)
	if err != nil {
		return fmt.Errorf("save withdrawal: %w", err)
	}
	return nil
}

func (r *withdrawalRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WithdrawalRequest, error) {
	row := pickRow(ctx, r.pool, tx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id=$1;`, id)
	return r.scanWithdrawal(row)
}

func (r *withdrawalRepo) scanWithdrawal(row pgx.Row) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	if err := row.Scan(&w.ID, &w.UserID, &w.AmountCents, &w.PaymentMethod, &w.AccountInfo, &w.Status,
		&w.RejectionReason, &w.Debited, &w.CreatedAt, &w.ProcessedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	if r.enc != nil && w.AccountInfo != "" {
		plain, err := r.enc.Decrypt(w.AccountInfo)
		if err != nil {
			return nil, fmt.Errorf("decrypt account info: %w", err)
		}
		w.AccountInfo = plain
	}
	return &w, nil
}

// Transition moves the request forward conditionally on its current status.
// Two operators racing on the same request cannot both win: the second
// UPDATE matches zero rows and returns false.
func (r *withdrawalRepo) Transition(ctx context.Context, tx repository.Tx, id string, from, to model.WithdrawalStatus, rejectionReason *string, debited bool) (bool, error) {
	const q = `
UPDATE withdrawal_requests
   SET status = $3, rejection_reason = $4, debited = $5, processed_at = NOW()
 WHERE id = $1 AND status = $2;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, from, to, rejectionReason, debited)
	if err != nil {
		return false, fmt.Errorf("transition withdrawal: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *withdrawalRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WithdrawalRequest, error) {
	const q = `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, userID)
}

func (r *withdrawalRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.WithdrawalStatus, offset, limit int) ([]*model.WithdrawalRequest, error) {
	const q = `
SELECT ` + withdrawalColumns + `
  FROM withdrawal_requests
 WHERE status=$1
 ORDER BY created_at ASC
OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, status, offset, limit)
}

func (r *withdrawalRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.WithdrawalRequest, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()
	var out []*model.WithdrawalRequest
	for rows.Next() {
		var w model.WithdrawalRequest
		if err := rows.Scan(&w.ID, &w.UserID, &w.AmountCents, &w.PaymentMethod, &w.AccountInfo, &w.Status,
			&w.RejectionReason, &w.Debited, &w.CreatedAt, &w.ProcessedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if r.enc != nil && w.AccountInfo != "" {
			plain, err := r.enc.Decrypt(w.AccountInfo)
			if err != nil {
				return nil, fmt.Errorf("decrypt account info: %w", err)
			}
			w.AccountInfo = plain
		}
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
