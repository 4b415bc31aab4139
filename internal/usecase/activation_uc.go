package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase owns the activation-code lifecycle: batch issuance,
// atomic redemption, and the paid-activation trigger that feeds the
// commission engine.
type ActivationUseCase interface {
	// Redeem consumes a code for a user and activates the bound plan.
	// Exactly one concurrent caller wins the code; losers get
	// domain.ErrCodeAlreadyUsed (or ErrCodeExpired / ErrNotFound).
	Redeem(ctx context.Context, code, userID string) (*model.Subscription, *model.Plan, error)
	// ActivateFromPayment handles an external "payment succeeded" event.
	// eventID keys commission idempotency for gateway payments that carry
	// no activation code.
	ActivateFromPayment(ctx context.Context, userID, planID, eventID string) (*model.Subscription, error)
	// GenerateBatch creates n unused codes for a plan, valid for ttl.
	GenerateBatch(ctx context.Context, planID string, n int, ttl time.Duration) ([]*model.ActivationCode, error)
	ListCodes(ctx context.Context, planID string, onlyUnused bool) ([]*model.ActivationCode, error)
}

// CommissionSettler is what the activation flow needs from the commission
// engine. Settlement is retryable, so it may run after the activation
// transaction has committed.
type CommissionSettler interface {
	Settle(ctx context.Context, invitedUserID string, plan *model.Plan, eventID string) error
}

// TaskSubmitter hands settlement off to a background worker so the request
// path does not wait on ledger writes. A nil submitter settles inline.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type activationUC struct {
	codes    repository.ActivationCodeRepository
	plans    repository.PlanRepository
	users    repository.UserRepository
	entitle  EntitlementUseCase
	settler  CommissionSettler
	submit   TaskSubmitter
	txm      repository.TransactionManager
	log      *zerolog.Logger
}

func NewActivationUseCase(
	codes repository.ActivationCodeRepository,
	plans repository.PlanRepository,
	users repository.UserRepository,
	entitle EntitlementUseCase,
	settler CommissionSettler,
	submit TaskSubmitter,
	txm repository.TransactionManager,
	logger *zerolog.Logger,
) *activationUC {
	return &activationUC{
		codes:   codes,
		plans:   plans,
		users:   users,
		entitle: entitle,
		settler: settler,
		submit:  submit,
		txm:     txm,
		log:     logger,
	}
}

func (u *activationUC) Redeem(ctx context.Context, code, userID string) (*model.Subscription, *model.Plan, error) {
	if code == "" || userID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}

	var (
		sub      *model.Subscription
		plan     *model.Plan
		consumed *model.ActivationCode
	)
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		// Single conditional update: the winner flips is_used, everyone
		// else learns why they lost.
		consumed, err = u.codes.Consume(ctx, tx, code, userID, time.Now())
		if err != nil {
			return err
		}

		plan, err = u.plans.FindByID(ctx, tx, consumed.PlanID)
		if err != nil {
			return err
		}

		sub, err = u.entitle.Activate(ctx, tx, user, plan, &consumed.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	u.log.Info().
		Str("user_id", userID).
		Str("plan_id", plan.ID).
		Str("code_id", consumed.ID).
		Msg("activation code redeemed")

	// Commission settlement is idempotent on (code, level), so it can run
	// outside the activation transaction and be retried freely.
	u.settle(ctx, userID, plan, consumed.ID)
	return sub, plan, nil
}

func (u *activationUC) ActivateFromPayment(ctx context.Context, userID, planID, eventID string) (*model.Subscription, error) {
	if userID == "" || planID == "" || eventID == "" {
		return nil, domain.ErrInvalidArgument
	}

	var (
		sub  *model.Subscription
		plan *model.Plan
	)
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		plan, err = u.plans.FindByID(ctx, tx, planID)
		if err != nil {
			return err
		}
		sub, err = u.entitle.Activate(ctx, tx, user, plan, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().
		Str("user_id", userID).
		Str("plan_id", planID).
		Str("event_id", eventID).
		Msg("plan activated from payment event")

	u.settle(ctx, userID, plan, eventID)
	return sub, nil
}

func (u *activationUC) settle(ctx context.Context, userID string, plan *model.Plan, eventID string) {
	if u.settler == nil {
		return
	}
	run := func(ctx context.Context) error {
		return u.settler.Settle(ctx, userID, plan, eventID)
	}
	if u.submit != nil {
		if err := u.submit.Submit(run); err == nil {
			return
		}
		// Queue saturated: settle inline rather than dropping the credit.
	}
	if err := run(ctx); err != nil {
		u.log.Error().Err(err).Str("event_id", eventID).Msg("commission settlement failed")
	}
}

func (u *activationUC) GenerateBatch(ctx context.Context, planID string, n int, ttl time.Duration) ([]*model.ActivationCode, error) {
	if n <= 0 || n > 1000 || ttl <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrInvalidArgument
	}

	now := time.Now()
	out := make([]*model.ActivationCode, 0, n)
	for i := 0; i < n; i++ {
		code, err := generateActivationCode()
		if err != nil {
			return nil, err
		}
		ac := &model.ActivationCode{
			ID:        uuid.NewString(),
			Code:      code,
			PlanID:    plan.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if err := u.codes.Save(ctx, repository.NoTX, ac); err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	u.log.Info().Str("plan_id", planID).Int("count", n).Msg("activation codes generated")
	return out, nil
}

func (u *activationUC) ListCodes(ctx context.Context, planID string, onlyUnused bool) ([]*model.ActivationCode, error) {
	return u.codes.ListByPlan(ctx, repository.NoTX, planID, onlyUnused)
}
