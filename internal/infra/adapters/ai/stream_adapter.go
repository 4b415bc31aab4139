package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIStreamer = (*StreamAdapter)(nil)

// StreamAdapter implements adapter.AIStreamer against an SSE-style chat
// backend. The backend answers a POST with a stream of `data:` lines, each
// carrying a JSON frame {conversation_id?, delta?, done?}; the conversation
// id arrives on the first frame of a fresh conversation.
type StreamAdapter struct {
	apiKey string
	base   string
	model  string
	client *http.Client
}

func NewStreamAdapter(cfg *config.AIConfig) (*StreamAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ai base url empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &StreamAdapter{
		apiKey: cfg.APIKey,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model          string `json:"model"`
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Stream         bool   `json:"stream"`
}

type chatFrame struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Delta          string `json:"delta,omitempty"`
	Done           bool   `json:"done,omitempty"`
}

func (a *StreamAdapter) StreamChat(ctx context.Context, query, upstreamConversationID string, h adapter.StreamHandler) error {
	body, _ := json.Marshal(chatRequest{
		Model:          a.model,
		Query:          query,
		ConversationID: upstreamConversationID,
		Stream:         true,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upstream http %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}
		var frame chatFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue // tolerate keep-alives and unknown frames
		}
		if frame.Done {
			return nil
		}
		if err := h(adapter.StreamFrame{ConversationID: frame.ConversationID, Delta: frame.Delta}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: stream cut short", domain.ErrUpstreamUnavailable)
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}
