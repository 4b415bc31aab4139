package model

import (
	"time"

	"ai-chat-subscription/internal/domain"
)

// Plan is a purchasable entitlement definition. Exactly one of DurationDays
// or ChatLimit is set: time-boxed plans carry a duration, times-card plans
// carry a chat cap and never expire by date. A plan referenced by an issued
// activation code must not be mutated.
type Plan struct {
	ID           string
	Name         string
	PriceCents   int64
	DurationDays *int
	ChatLimit    *int
	Active       bool
	CreatedAt    time.Time
}

// NewTimeBoxedPlan validates and constructs a duration-bounded plan.
func NewTimeBoxedPlan(id, name string, priceCents int64, durationDays int) (*Plan, error) {
	if id == "" || name == "" || priceCents <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		PriceCents:   priceCents,
		DurationDays: &durationDays,
		Active:       true,
		CreatedAt:    time.Now(),
	}, nil
}

// NewTimesCardPlan validates and constructs a count-bounded plan.
func NewTimesCardPlan(id, name string, priceCents int64, chatLimit int) (*Plan, error) {
	if id == "" || name == "" || priceCents <= 0 || chatLimit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:         id,
		Name:       name,
		PriceCents: priceCents,
		ChatLimit:  &chatLimit,
		Active:     true,
		CreatedAt:  time.Now(),
	}, nil
}

func (p *Plan) IsZero() bool      { return p == nil || p.ID == "" }
func (p *Plan) IsTimeBoxed() bool { return p != nil && p.DurationDays != nil }
func (p *Plan) IsTimesCard() bool { return p != nil && p.ChatLimit != nil }

// SubscriptionType classifies the plan family for the user mirror fields.
func (p *Plan) SubscriptionType() SubscriptionType {
	if p.IsTimesCard() {
		return SubscriptionTimes
	}
	switch {
	case *p.DurationDays >= 365:
		return SubscriptionYearly
	case *p.DurationDays >= 90:
		return SubscriptionQuarterly
	default:
		return SubscriptionMonthly
	}
}
