package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (users int, activeByPlan map[string]int, commissionCents int64, err error)
	PendingWithdrawals(ctx context.Context) (int, error)
}

type statsUC struct {
	users       repository.UserRepository
	subs        repository.SubscriptionRepository
	commissions repository.CommissionRepository
	withdrawals repository.WithdrawalRepository

	log *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, commissions repository.CommissionRepository, withdrawals repository.WithdrawalRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, subs: subs, commissions: commissions, withdrawals: withdrawals, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, map[string]int, int64, error) {
	users, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, 0, err
	}
	active, err := s.subs.CountActiveByPlanName(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, 0, err
	}
	paid, err := s.commissions.SumAll(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, 0, err
	}
	return users, active, paid, nil
}

func (s *statsUC) PendingWithdrawals(ctx context.Context) (int, error) {
	pending, err := s.withdrawals.ListByStatus(ctx, repository.NoTX, model.WithdrawalPending, 0, 1000)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}
