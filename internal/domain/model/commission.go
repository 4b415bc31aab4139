package model

import (
	"time"

	"ai-chat-subscription/internal/domain"
)

// CommissionRecord is an immutable, append-only ledger entry produced when a
// paid activation credits an upline inviter. The (ActivationCodeID, Level)
// pair is unique, which makes re-settlement of the same activation a no-op.
type CommissionRecord struct {
	ID               string
	InviterUserID    string
	InvitedUserID    string
	PlanID           string
	Level            int // 0 = direct inviter, 1 = inviter's inviter
	AmountCents      int64
	Percentage       float64
	ActivationCodeID string
	CreatedAt        time.Time
}

func NewCommissionRecord(id, inviterID, invitedID, planID, activationCodeID string, level int, priceCents int64, pct float64) (*CommissionRecord, error) {
	if id == "" || inviterID == "" || invitedID == "" || planID == "" || activationCodeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if level != 0 && level != 1 {
		return nil, domain.ErrInvalidArgument
	}
	if priceCents <= 0 || pct <= 0 || pct >= 1 {
		return nil, domain.ErrInvalidArgument
	}
	return &CommissionRecord{
		ID:               id,
		InviterUserID:    inviterID,
		InvitedUserID:    invitedID,
		PlanID:           planID,
		Level:            level,
		AmountCents:      int64(float64(priceCents) * pct),
		Percentage:       pct,
		ActivationCodeID: activationCodeID,
		CreatedAt:        time.Now(),
	}, nil
}

// Balance is a user's accumulated, withdrawable commission total. It is only
// ever written by commission credits and withdrawal debits/refunds.
type Balance struct {
	UserID      string
	AmountCents int64
	UpdatedAt   time.Time
}
