package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase derives a user's current entitlement from subscription
// history and materializes new subscriptions on activation.
type EntitlementUseCase interface {
	// Resolve returns the entitlement snapshot for a user. Policy order:
	// active time-boxed subscription, active times-card subscription with
	// remaining quota, count-limited free trial, expired.
	Resolve(ctx context.Context, tx repository.Tx, userID string) (model.Entitlement, error)
	// Activate cancels any prior active subscription row for the user,
	// inserts the new active row, and mirrors the plan onto the user record.
	// Caller is responsible for running it inside a transaction.
	Activate(ctx context.Context, tx repository.Tx, user *model.User, plan *model.Plan, activationCodeID *string) (*model.Subscription, error)
}

type entitlementUC struct {
	users     repository.UserRepository
	subs      repository.SubscriptionRepository
	plans     repository.PlanRepository
	freeLimit int
	log       *zerolog.Logger
}

func NewEntitlementUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, plans repository.PlanRepository, freeLimit int, logger *zerolog.Logger) *entitlementUC {
	return &entitlementUC{users: users, subs: subs, plans: plans, freeLimit: freeLimit, log: logger}
}

func (u *entitlementUC) Resolve(ctx context.Context, tx repository.Tx, userID string) (model.Entitlement, error) {
	user, err := u.users.FindByID(ctx, tx, userID)
	if err != nil {
		return model.Entitlement{}, err
	}

	now := time.Now()
	sub, err := u.subs.FindActiveByUser(ctx, tx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return model.Entitlement{}, err
	}

	if sub != nil {
		if sub.PeriodEnd != nil {
			if !sub.Lapsed(now) {
				return model.Entitlement{
					State:         model.EntitlementPaidActive,
					Used:          user.ChatCount,
					RemainingDays: int(sub.PeriodEnd.Sub(now).Hours() / 24),
				}, nil
			}
			// Lapsed rows are observed here, not swept by a background job.
			u.markExpired(ctx, tx, sub.ID)
		} else {
			limit := u.timesCardLimit(ctx, tx, sub)
			if limit > 0 && user.ChatCount < limit {
				return model.Entitlement{
					State: model.EntitlementPaidActive,
					Scope: model.ScopePlan,
					Used:  user.ChatCount,
					Limit: limit,
				}, nil
			}
			u.markExpired(ctx, tx, sub.ID)

			// Exhausted times-card: report the plan cap as the binding limit.
			return model.Entitlement{
				State: model.EntitlementExpired,
				Scope: model.ScopePlan,
				Used:  user.ChatCount,
				Limit: limit,
			}, nil
		}
	}

	// The trial is only count-limited, never time-limited.
	if user.ChatCount < u.freeLimit && user.SubscriptionType == model.SubscriptionFree {
		return model.Entitlement{
			State: model.EntitlementTrialActive,
			Scope: model.ScopeTrial,
			Used:  user.ChatCount,
			Limit: u.freeLimit,
		}, nil
	}

	return model.Entitlement{
		State: model.EntitlementExpired,
		Scope: model.ScopeTrial,
		Used:  user.ChatCount,
		Limit: u.freeLimit,
	}, nil
}

func (u *entitlementUC) timesCardLimit(ctx context.Context, tx repository.Tx, sub *model.Subscription) int {
	plan, err := u.plans.FindByID(ctx, tx, sub.PlanID)
	if err != nil || !plan.IsTimesCard() {
		return 0
	}
	return *plan.ChatLimit
}

func (u *entitlementUC) markExpired(ctx context.Context, tx repository.Tx, subID string) {
	if err := u.subs.MarkExpired(ctx, tx, subID); err != nil {
		u.log.Warn().Err(err).Str("subscription_id", subID).Msg("mark expired failed")
	}
}

func (u *entitlementUC) Activate(ctx context.Context, tx repository.Tx, user *model.User, plan *model.Plan, activationCodeID *string) (*model.Subscription, error) {
	if user.IsZero() || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}

	// At most one active subscription per user: cancel before insert.
	if _, err := u.subs.CancelActiveByUser(ctx, tx, user.ID); err != nil {
		return nil, err
	}

	sub, err := model.NewSubscription(uuid.NewString(), user.ID, plan, activationCodeID)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}

	user.ApplyPlan(plan, sub.PeriodStart, sub.PeriodEnd)
	if err := u.users.UpdateSubscriptionFields(ctx, tx, user); err != nil {
		return nil, err
	}
	return sub, nil
}
