package usecase

import (
	"context"

	"github.com/google/uuid"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

// PlanUseCase manages the plan catalog.
type PlanUseCase struct {
	repo repository.PlanRepository
}

// NewPlanUseCase constructs a PlanUseCase.
func NewPlanUseCase(repo repository.PlanRepository) *PlanUseCase {
	return &PlanUseCase{repo: repo}
}

// CreateTimeBoxed adds a duration-bounded plan to the catalog.
func (uc *PlanUseCase) CreateTimeBoxed(ctx context.Context, name string, priceCents int64, durationDays int) (*model.Plan, error) {
	plan, err := model.NewTimeBoxedPlan(uuid.NewString(), name, priceCents, durationDays)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// CreateTimesCard adds a count-bounded plan to the catalog.
func (uc *PlanUseCase) CreateTimesCard(ctx context.Context, name string, priceCents int64, chatLimit int) (*model.Plan, error) {
	plan, err := model.NewTimesCardPlan(uuid.NewString(), name, priceCents, chatLimit)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Get retrieves a plan by ID.
func (uc *PlanUseCase) Get(ctx context.Context, id string) (*model.Plan, error) {
	return uc.repo.FindByID(ctx, repository.NoTX, id)
}

// ListActive returns purchasable plans.
func (uc *PlanUseCase) ListActive(ctx context.Context) ([]*model.Plan, error) {
	return uc.repo.ListActive(ctx, repository.NoTX)
}

// ListAll returns all plans including deactivated ones.
func (uc *PlanUseCase) ListAll(ctx context.Context) ([]*model.Plan, error) {
	return uc.repo.ListAll(ctx, repository.NoTX)
}

// Rename updates a plan's display name. Price and bounds are immutable once
// codes reference the plan.
func (uc *PlanUseCase) Rename(ctx context.Context, id, name string) (*model.Plan, error) {
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	plan, err := uc.repo.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	plan.Name = name
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Deactivate hides a plan from new purchases. Plans referenced by issued
// codes are never deleted.
func (uc *PlanUseCase) Deactivate(ctx context.Context, id string) error {
	return uc.repo.Deactivate(ctx, repository.NoTX, id)
}
