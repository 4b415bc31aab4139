package model

import (
	"time"
)

// Conversation groups a user's messages against one upstream AI session.
// UpstreamConversationID is learned from the backend's first answer and
// reused on follow-up turns.
type Conversation struct {
	ID                     string
	UserID                 string
	Title                  string
	UpstreamConversationID *string
	Deleted                bool
	DeletedAt              *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func NewConversation(id, userID, title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Message is one turn half within a conversation. Deletion is a soft flag so
// replay-derived quota counts and admin audit stay historically consistent.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" | "assistant" | "system"
	Content        string
	Deleted        bool
	DeletedAt      *time.Time
	CreatedAt      time.Time
}

func NewMessage(id, conversationID, role, content string) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}
