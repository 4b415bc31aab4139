package model

import (
	"time"

	"ai-chat-subscription/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is one history record of a user's entitlement. A user may
// accumulate several over time; at most one per user is ever 'active'.
// Superseded rows are cancelled, elapsed rows are observed as expired lazily.
type Subscription struct {
	ID               string
	UserID           string
	PlanID           string
	PlanName         string
	Status           SubscriptionStatus
	PeriodStart      time.Time
	PeriodEnd        *time.Time // nil for times-card plans (no date bound)
	ActivationCodeID *string
	CreatedAt        time.Time
}

// NewSubscription creates the active record for a freshly activated plan.
func NewSubscription(id, userID string, plan *Plan, activationCodeID *string) (*Subscription, error) {
	if id == "" || userID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	s := &Subscription{
		ID:               id,
		UserID:           userID,
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		Status:           SubscriptionStatusActive,
		PeriodStart:      now,
		ActivationCodeID: activationCodeID,
		CreatedAt:        now,
	}
	if plan.IsTimeBoxed() {
		end := now.Add(time.Duration(*plan.DurationDays) * 24 * time.Hour)
		s.PeriodEnd = &end
	}
	return s, nil
}

// Lapsed reports whether a time-boxed subscription has passed its period end.
func (s *Subscription) Lapsed(now time.Time) bool {
	return s.PeriodEnd != nil && !now.Before(*s.PeriodEnd)
}
