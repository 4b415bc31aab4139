package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// UserRepository stores users and the lifetime chat counter.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByPhone(ctx context.Context, tx Tx, phone string) (*model.User, error)
	// IncrementChatCount bumps the lifetime counter by one and returns the
	// new value. Called once per successfully completed chat turn.
	IncrementChatCount(ctx context.Context, tx Tx, userID string) (int, error)
	// UpdateSubscriptionFields mirrors the resolved entitlement onto the
	// user row after an activation.
	UpdateSubscriptionFields(ctx context.Context, tx Tx, u *model.User) error
	CountUsers(ctx context.Context, tx Tx) (int, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.User, error)
}
