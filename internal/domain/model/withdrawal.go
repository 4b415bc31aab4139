package model

import (
	"time"

	"ai-chat-subscription/internal/domain"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

// WithdrawalRequest moves strictly forward:
// pending -> processing -> completed, or pending -> rejected
// (processing -> rejected is also legal so an operator can back out after
// funds were earmarked; the debit is refunded in the same operation).
// completed and rejected are terminal.
type WithdrawalRequest struct {
	ID              string
	UserID          string
	AmountCents     int64
	PaymentMethod   string
	AccountInfo     string
	Status          WithdrawalStatus
	RejectionReason *string
	Debited         bool // whether the balance debit has been applied
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

func NewWithdrawalRequest(id, userID string, amountCents int64, method, accountInfo string) (*WithdrawalRequest, error) {
	if id == "" || userID == "" || amountCents <= 0 || method == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &WithdrawalRequest{
		ID:            id,
		UserID:        userID,
		AmountCents:   amountCents,
		PaymentMethod: method,
		AccountInfo:   accountInfo,
		Status:        WithdrawalPending,
		CreatedAt:     time.Now(),
	}, nil
}

// CanTransition reports whether moving to the target status is legal.
func (w *WithdrawalRequest) CanTransition(to WithdrawalStatus) bool {
	switch w.Status {
	case WithdrawalPending:
		return to == WithdrawalProcessing || to == WithdrawalRejected
	case WithdrawalProcessing:
		return to == WithdrawalCompleted || to == WithdrawalRejected
	default:
		return false
	}
}
