package repository

import (
	"context"
	"time"

	"ai-chat-subscription/internal/domain/model"
)

// SubscriptionRepository stores subscription history rows. The "at most one
// active row per user" invariant is enforced by the activation flow calling
// CancelActiveByUser and Save inside one transaction.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// CancelActiveByUser flips every active row of the user to cancelled and
	// returns how many rows changed.
	CancelActiveByUser(ctx context.Context, tx Tx, userID string) (int, error)
	// MarkExpired flips a lapsed row from active to expired (lazy observation).
	MarkExpired(ctx context.Context, tx Tx, id string) error
	// ExpireLapsed flips every active time-boxed row whose period has ended
	// and returns how many rows changed. Used by the periodic sweeper.
	ExpireLapsed(ctx context.Context, tx Tx, now time.Time) (int64, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	CountActiveByPlanName(ctx context.Context, tx Tx) (map[string]int, error)
}
