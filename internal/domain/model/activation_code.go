package model

import (
	"time"
)

// ActivationCode represents a single-use code that unlocks a plan for one user.
// Once IsUsed flips to true, UsedByUserID and ActivatedAt are set and frozen.
type ActivationCode struct {
	ID           string
	Code         string
	PlanID       string
	IsUsed       bool
	UsedByUserID *string    // Pointer to allow for NULL
	ActivatedAt  *time.Time // Pointer to allow for NULL
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the code may no longer be consumed.
func (c *ActivationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
