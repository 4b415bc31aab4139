package ai

import (
	"context"
	"strings"
	"time"

	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.AIStreamer = (*NoopStreamer)(nil)

// NoopStreamer implements adapter.AIStreamer for local/dev runs. It echoes
// the query back word by word with a small delay so the streaming path can
// be exercised without a live backend.
type NoopStreamer struct{}

func NewNoopStreamer() *NoopStreamer {
	return &NoopStreamer{}
}

func (n *NoopStreamer) StreamChat(ctx context.Context, query, upstreamConversationID string, h adapter.StreamHandler) error {
	cid := upstreamConversationID
	if cid == "" {
		cid = "noop-" + time.Now().Format("150405")
	}
	words := strings.Fields("echo: " + query)
	for i, w := range words {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		frame := adapter.StreamFrame{Delta: w + " "}
		if i == 0 {
			frame.ConversationID = cid
		}
		if err := h(frame); err != nil {
			return err
		}
	}
	return nil
}
