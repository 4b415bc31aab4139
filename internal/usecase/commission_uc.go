package usecase

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/metrics"
)

// Compile-time checks
var (
	_ CommissionUseCase = (*commissionUC)(nil)
	_ CommissionSettler = (*commissionUC)(nil)
)

// CommissionUseCase settles two-tier referral commissions and exposes the
// balance ledger to its owners.
type CommissionUseCase interface {
	// Settle credits the activated user's upline for one paid activation.
	// It is idempotent on (eventID, level): re-running it for the same
	// activation writes nothing.
	Settle(ctx context.Context, invitedUserID string, plan *model.Plan, eventID string) error
	MyBalance(ctx context.Context, userID string) (*model.Balance, error)
	MyCommissions(ctx context.Context, userID string, offset, limit int) ([]*model.CommissionRecord, error)
}

type commissionUC struct {
	users       repository.UserRepository
	commissions repository.CommissionRepository
	balances    repository.BalanceRepository
	txm         repository.TransactionManager
	level0Pct   float64
	level1Pct   float64
	log         *zerolog.Logger
}

func NewCommissionUseCase(
	users repository.UserRepository,
	commissions repository.CommissionRepository,
	balances repository.BalanceRepository,
	txm repository.TransactionManager,
	level0Pct, level1Pct float64,
	logger *zerolog.Logger,
) *commissionUC {
	return &commissionUC{
		users:       users,
		commissions: commissions,
		balances:    balances,
		txm:         txm,
		level0Pct:   level0Pct,
		level1Pct:   level1Pct,
		log:         logger,
	}
}

func (u *commissionUC) Settle(ctx context.Context, invitedUserID string, plan *model.Plan, eventID string) error {
	if invitedUserID == "" || plan.IsZero() || eventID == "" {
		return domain.ErrInvalidArgument
	}

	invited, err := u.users.FindByID(ctx, repository.NoTX, invitedUserID)
	if err != nil {
		return err
	}
	if invited.InvitedBy == nil {
		return nil // organic signup, nobody to credit
	}

	// Level 0: the direct inviter.
	level0, err := u.users.FindByID(ctx, repository.NoTX, *invited.InvitedBy)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("inviter_id", *invited.InvitedBy).Msg("inviter vanished, skipping commission")
			return nil
		}
		return err
	}
	if err := u.credit(ctx, level0.ID, invitedUserID, plan, 0, u.level0Pct, eventID); err != nil {
		return err
	}

	// Level 1: the inviter's inviter. The chain stops here; it is not
	// walked recursively.
	if level0.InvitedBy == nil {
		return nil
	}
	return u.credit(ctx, *level0.InvitedBy, invitedUserID, plan, 1, u.level1Pct, eventID)
}

// credit appends one ledger record and bumps the inviter's balance in a
// single transaction. The unique (event, level) pair makes the insert a
// no-op on replay, and the balance is only credited when the insert actually
// inserted.
func (u *commissionUC) credit(ctx context.Context, inviterID, invitedID string, plan *model.Plan, level int, pct float64, eventID string) error {
	rec, err := model.NewCommissionRecord(uuid.NewString(), inviterID, invitedID, plan.ID, eventID, level, plan.PriceCents, pct)
	if err != nil {
		return err
	}

	return u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		inserted, err := u.commissions.Insert(ctx, tx, rec)
		if err != nil {
			return err
		}
		if !inserted {
			u.log.Debug().
				Str("event_id", eventID).
				Int("level", level).
				Msg("commission already settled, skipping")
			return nil
		}
		if err := u.balances.Credit(ctx, tx, inviterID, rec.AmountCents); err != nil {
			return err
		}
		metrics.AddCommissionCents(strconv.Itoa(level), rec.AmountCents)
		u.log.Info().
			Str("inviter_id", inviterID).
			Str("invited_id", invitedID).
			Int("level", level).
			Int64("amount_cents", rec.AmountCents).
			Msg("commission credited")
		return nil
	})
}

func (u *commissionUC) MyBalance(ctx context.Context, userID string) (*model.Balance, error) {
	b, err := u.balances.Get(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &model.Balance{UserID: userID, AmountCents: 0}, nil
	}
	return b, err
}

func (u *commissionUC) MyCommissions(ctx context.Context, userID string, offset, limit int) ([]*model.CommissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return u.commissions.ListByInviter(ctx, repository.NoTX, userID, offset, limit)
}
