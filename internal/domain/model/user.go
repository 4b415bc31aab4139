package model

import (
	"time"

	"ai-chat-subscription/internal/domain"

	"github.com/google/uuid"
)

type SubscriptionType string

const (
	SubscriptionFree      SubscriptionType = "free"
	SubscriptionMonthly   SubscriptionType = "monthly"
	SubscriptionQuarterly SubscriptionType = "quarterly"
	SubscriptionYearly    SubscriptionType = "yearly"
	SubscriptionTimes     SubscriptionType = "times"
)

// User carries only entitlement-relevant state. ChatCount is the lifetime
// counter shared by the free trial and times-card plans; per-conversation
// counts are derived from persisted messages, never stored here.
type User struct {
	ID                string
	Phone             string
	InvitedBy         *string // UUID of the direct inviter, nil for organic signups
	SubscriptionType  SubscriptionType
	SubscriptionStart time.Time
	SubscriptionEnd   *time.Time
	ChatCount         int
	RegisteredAt      time.Time
	LastActiveAt      time.Time
}

func NewUser(id, phone string, invitedBy *string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if phone == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:               id,
		Phone:            phone,
		InvitedBy:        invitedBy,
		SubscriptionType: SubscriptionFree,
		ChatCount:        0,
		RegisteredAt:     now,
		LastActiveAt:     now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
func (u *User) Touch()       { u.LastActiveAt = time.Now() }

// ApplyPlan mirrors a freshly activated plan onto the user's entitlement
// fields. SubscriptionEnd stays nil for times-card plans.
func (u *User) ApplyPlan(p *Plan, start time.Time, end *time.Time) {
	u.SubscriptionType = p.SubscriptionType()
	u.SubscriptionStart = start
	u.SubscriptionEnd = end
}
