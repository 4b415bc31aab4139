package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/logging"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// QuotaError decorates domain.ErrQuotaExceeded with the entitlement snapshot
// so callers can render "trial exhausted" vs "conversation full" precisely.
type QuotaError struct {
	Snapshot model.Entitlement
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%v: %d/%d (%s)", domain.ErrQuotaExceeded, e.Snapshot.Used, e.Snapshot.Limit, e.Snapshot.Scope)
}

func (e *QuotaError) Unwrap() error { return domain.ErrQuotaExceeded }

// StreamSink receives the relayed answer. Warning fires at most once and
// before any delta, CID fires at most once when the upstream conversation id
// is learned, Delta fires per text increment in order.
type StreamSink interface {
	Warning(snapshot model.Entitlement) error
	CID(upstreamID string) error
	Delta(text string) error
}

// TurnResult summarizes a completed chat turn.
type TurnResult struct {
	Reply            string
	ChatCount        int
	ConversationUsed int
	Truncated        bool
}

type ChatUseCase interface {
	StartConversation(ctx context.Context, userID, title string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error)
	// SendMessage runs one chat turn: quota gate, user-message persistence,
	// streaming relay, assistant-message persistence, counter increment.
	SendMessage(ctx context.Context, userID, conversationID, query string, sink StreamSink) (*TurnResult, error)
	Entitlement(ctx context.Context, userID string) (model.Entitlement, error)
}

type chatUC struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	entitle       EntitlementUseCase
	ai            adapter.AIStreamer
	maxPerConv    int
	warnThreshold int
	log           *zerolog.Logger
}

func NewChatUseCase(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	entitle EntitlementUseCase,
	ai adapter.AIStreamer,
	maxPerConv, warnThreshold int,
	logger *zerolog.Logger,
) *chatUC {
	return &chatUC{
		conversations: conversations,
		messages:      messages,
		users:         users,
		entitle:       entitle,
		ai:            ai,
		maxPerConv:    maxPerConv,
		warnThreshold: warnThreshold,
		log:           logger,
	}
}

func (c *chatUC) StartConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if title == "" {
		title = "New conversation"
	}
	conv := model.NewConversation(uuid.NewString(), userID, title)
	if err := c.conversations.Save(ctx, repository.NoTX, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (c *chatUC) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	return c.conversations.ListByUser(ctx, repository.NoTX, userID)
}

func (c *chatUC) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conv, err := c.conversations.FindByID(ctx, repository.NoTX, conversationID)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return domain.ErrNotFound
	}
	return c.conversations.SoftDelete(ctx, repository.NoTX, conversationID)
}

func (c *chatUC) ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error) {
	conv, err := c.conversations.FindByID(ctx, repository.NoTX, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return c.messages.ListByConversation(ctx, repository.NoTX, conversationID)
}

func (c *chatUC) Entitlement(ctx context.Context, userID string) (model.Entitlement, error) {
	return c.entitle.Resolve(ctx, repository.NoTX, userID)
}

func (c *chatUC) SendMessage(ctx context.Context, userID, conversationID, query string, sink StreamSink) (*TurnResult, error) {
	ctx = logging.WithConversationID(ctx, conversationID)
	defer logging.TraceDuration(logging.With(ctx, c.log), "ChatUC.SendMessage")()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidArgument
	}

	conv, err := c.conversations.FindByID(ctx, repository.NoTX, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID || conv.Deleted {
		return nil, domain.ErrNotFound
	}

	// ---- Quota gate: both checks run before the upstream is contacted ----

	ent, err := c.entitle.Resolve(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if !ent.Allowed() || ent.Remaining() == 0 {
		return nil, &QuotaError{Snapshot: ent}
	}

	// Derived, never cached: counting persisted user messages self-heals
	// after deletions. Two concurrent sends can momentarily both pass; the
	// conversation cap is a soft limit and that is accepted.
	used, err := c.messages.CountUserMessages(ctx, repository.NoTX, conversationID)
	if err != nil {
		return nil, err
	}
	if used >= c.maxPerConv {
		return nil, &QuotaError{Snapshot: model.Entitlement{
			State: ent.State,
			Scope: model.ScopeConversation,
			Used:  used,
			Limit: c.maxPerConv,
		}}
	}
	if used+1 >= c.warnThreshold {
		if err := sink.Warning(model.Entitlement{
			State: ent.State,
			Scope: model.ScopeConversation,
			Used:  used + 1,
			Limit: c.maxPerConv,
		}); err != nil {
			return nil, err
		}
	}

	// The user message is persisted before the upstream call; it is already
	// visible in the client.
	userMsg := model.NewMessage(uuid.NewString(), conversationID, "user", query)
	if err := c.messages.Save(ctx, repository.NoTX, userMsg); err != nil {
		return nil, err
	}

	// ---- Streaming relay ----

	upstreamID := ""
	if conv.UpstreamConversationID != nil {
		upstreamID = *conv.UpstreamConversationID
	}

	var answer strings.Builder
	cidSeen := upstreamID != ""
	streamErr := c.ai.StreamChat(ctx, query, upstreamID, func(frame adapter.StreamFrame) error {
		if frame.ConversationID != "" && !cidSeen {
			cidSeen = true
			if err := c.conversations.SetUpstreamID(ctx, repository.NoTX, conversationID, frame.ConversationID); err != nil {
				c.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("persist upstream id failed")
			}
			if err := sink.CID(frame.ConversationID); err != nil {
				return err
			}
		}
		if frame.Delta != "" {
			answer.WriteString(frame.Delta)
			if err := sink.Delta(frame.Delta); err != nil {
				return err
			}
		}
		return nil
	})

	if streamErr != nil {
		// Persist whatever arrived: the browser already shows it. The turn
		// does not count against any quota.
		if answer.Len() > 0 {
			partial := model.NewMessage(uuid.NewString(), conversationID, "assistant", answer.String())
			if err := c.messages.Save(ctx, repository.NoTX, partial); err != nil {
				c.log.Error().Err(err).Str("conversation_id", conversationID).Msg("persist partial answer failed")
			}
		}
		if errors.Is(streamErr, context.Canceled) {
			c.log.Debug().Str("conversation_id", conversationID).Msg("client went away mid-stream")
			return &TurnResult{Reply: answer.String(), Truncated: true}, nil
		}
		c.log.Warn().Err(streamErr).Str("conversation_id", conversationID).Msg("upstream stream failed")
		return nil, domain.ErrUpstreamUnavailable
	}

	// ---- Completed turn: persist and charge ----

	assistantMsg := model.NewMessage(uuid.NewString(), conversationID, "assistant", answer.String())
	if err := c.messages.Save(ctx, repository.NoTX, assistantMsg); err != nil {
		return nil, err
	}

	count, err := c.users.IncrementChatCount(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Reply:            answer.String(),
		ChatCount:        count,
		ConversationUsed: used + 1,
	}, nil
}
