package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ WithdrawalUseCase = (*withdrawalUC)(nil)

// WithdrawalUseCase runs the withdrawal state machine against the balance
// ledger. Funds are earmarked by an atomic conditional debit; a rejection
// after the debit refunds in the same transaction as the status flip.
type WithdrawalUseCase interface {
	Create(ctx context.Context, userID string, amountCents int64, method, accountInfo string) (*model.WithdrawalRequest, error)
	// Accept moves pending -> processing (operator begins payout).
	Accept(ctx context.Context, id string) error
	// Complete moves processing -> completed (payout confirmed).
	Complete(ctx context.Context, id string) error
	// Reject terminates the request and refunds any applied debit.
	Reject(ctx context.Context, id, reason string) error
	ListByUser(ctx context.Context, userID string) ([]*model.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status model.WithdrawalStatus, offset, limit int) ([]*model.WithdrawalRequest, error)
}

type withdrawalUC struct {
	withdrawals repository.WithdrawalRepository
	balances    repository.BalanceRepository
	txm         repository.TransactionManager
	debitPhase  config.DebitPhase
	log         *zerolog.Logger
}

func NewWithdrawalUseCase(
	withdrawals repository.WithdrawalRepository,
	balances repository.BalanceRepository,
	txm repository.TransactionManager,
	debitPhase config.DebitPhase,
	logger *zerolog.Logger,
) *withdrawalUC {
	return &withdrawalUC{
		withdrawals: withdrawals,
		balances:    balances,
		txm:         txm,
		debitPhase:  debitPhase,
		log:         logger,
	}
}

func (u *withdrawalUC) Create(ctx context.Context, userID string, amountCents int64, method, accountInfo string) (*model.WithdrawalRequest, error) {
	w, err := model.NewWithdrawalRequest(uuid.NewString(), userID, amountCents, method, accountInfo)
	if err != nil {
		return nil, err
	}

	err = u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if u.debitPhase == config.DebitOnSubmission {
			// Debit immediately; the conditional decrement doubles as the
			// insufficient-funds check.
			ok, err := u.balances.DebitIfSufficient(ctx, tx, userID, amountCents)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrInsufficientBalance
			}
			w.Debited = true
		} else {
			// Debit happens at Accept; still refuse requests that exceed
			// the balance at submission time.
			b, err := u.balances.Get(ctx, tx, userID)
			if err != nil && err != domain.ErrNotFound {
				return err
			}
			if b == nil || b.AmountCents < amountCents {
				return domain.ErrInsufficientBalance
			}
		}
		return u.withdrawals.Save(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().
		Str("withdrawal_id", w.ID).
		Str("user_id", userID).
		Int64("amount_cents", amountCents).
		Msg("withdrawal requested")
	return w, nil
}

func (u *withdrawalUC) Accept(ctx context.Context, id string) error {
	return u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		w, err := u.withdrawals.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.CanTransition(model.WithdrawalProcessing) {
			return domain.ErrInvalidState
		}

		debited := w.Debited
		if !debited {
			ok, err := u.balances.DebitIfSufficient(ctx, tx, w.UserID, w.AmountCents)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrInsufficientBalance
			}
			debited = true
		}

		ok, err := u.withdrawals.Transition(ctx, tx, id, model.WithdrawalPending, model.WithdrawalProcessing, nil, debited)
		if err != nil {
			return err
		}
		if !ok {
			// Someone else processed it between our read and write.
			return domain.ErrInvalidState
		}
		u.log.Info().Str("withdrawal_id", id).Msg("withdrawal accepted for payout")
		return nil
	})
}

func (u *withdrawalUC) Complete(ctx context.Context, id string) error {
	return u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		w, err := u.withdrawals.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.CanTransition(model.WithdrawalCompleted) {
			return domain.ErrInvalidState
		}
		ok, err := u.withdrawals.Transition(ctx, tx, id, model.WithdrawalProcessing, model.WithdrawalCompleted, nil, w.Debited)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		u.log.Info().Str("withdrawal_id", id).Msg("withdrawal completed")
		return nil
	})
}

func (u *withdrawalUC) Reject(ctx context.Context, id, reason string) error {
	return u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		w, err := u.withdrawals.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.CanTransition(model.WithdrawalRejected) {
			return domain.ErrInvalidState
		}
		ok, err := u.withdrawals.Transition(ctx, tx, id, w.Status, model.WithdrawalRejected, &reason, false)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		// The refund rides the same transaction as the rejection: either
		// both land or neither does.
		if w.Debited {
			if err := u.balances.Credit(ctx, tx, w.UserID, w.AmountCents); err != nil {
				return err
			}
		}
		u.log.Info().Str("withdrawal_id", id).Str("reason", reason).Bool("refunded", w.Debited).Msg("withdrawal rejected")
		return nil
	})
}

func (u *withdrawalUC) ListByUser(ctx context.Context, userID string) ([]*model.WithdrawalRequest, error) {
	return u.withdrawals.ListByUser(ctx, repository.NoTX, userID)
}

func (u *withdrawalUC) ListByStatus(ctx context.Context, status model.WithdrawalStatus, offset, limit int) ([]*model.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	return u.withdrawals.ListByStatus(ctx, repository.NoTX, status, offset, limit)
}
