package repository

import (
	"context"
	"time"

	"ai-chat-subscription/internal/domain/model"
)

// ActivationCodeRepository stores single-use codes.
//
// Consume is the redemption primitive: it must be a single conditional
// update (guarded by is_used = FALSE and the expiry in the same statement)
// so that concurrent redemptions of the same code admit exactly one winner.
// Losers get domain.ErrCodeAlreadyUsed, domain.ErrCodeExpired, or
// domain.ErrNotFound depending on the row's state.
type ActivationCodeRepository interface {
	Save(ctx context.Context, tx Tx, code *model.ActivationCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.ActivationCode, error)
	Consume(ctx context.Context, tx Tx, code, userID string, now time.Time) (*model.ActivationCode, error)
	ListByPlan(ctx context.Context, tx Tx, planID string, onlyUnused bool) ([]*model.ActivationCode, error)
}
