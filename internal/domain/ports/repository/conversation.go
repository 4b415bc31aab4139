package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// ConversationRepository stores conversations and their messages. Deletion is
// always soft (flag + timestamp); rows are never physically removed by
// normal flows.
type ConversationRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Conversation) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Conversation, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Conversation, error)
	SetUpstreamID(ctx context.Context, tx Tx, id, upstreamID string) error
	SoftDelete(ctx context.Context, tx Tx, id string) error
}

// MessageRepository persists individual turns.
//
// CountUserMessages is the per-conversation quota counter: it is derived by
// counting persisted non-deleted user messages rather than kept as a cached
// integer, so it self-heals after deletions.
type MessageRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Message) error
	ListByConversation(ctx context.Context, tx Tx, conversationID string) ([]*model.Message, error)
	CountUserMessages(ctx context.Context, tx Tx, conversationID string) (int, error)
	SoftDelete(ctx context.Context, tx Tx, id string) error
}
