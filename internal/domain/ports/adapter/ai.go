package adapter

import "context"

// StreamFrame is one increment from the AI backend: an optional upstream
// conversation identifier (sent at least once per answer) and a literal text
// delta to append.
type StreamFrame struct {
	ConversationID string
	Delta          string
}

// StreamHandler receives frames as they arrive. Returning an error stops the
// stream; the adapter must then return that error from StreamChat.
type StreamHandler func(frame StreamFrame) error

// AIStreamer is the port for the external AI backend. The relay never
// buffers the whole answer: frames are handed over as they are read.
//
// upstreamConversationID is empty on the first turn of a conversation; the
// backend then allocates one and reports it in a frame.
type AIStreamer interface {
	StreamChat(ctx context.Context, query, upstreamConversationID string, h StreamHandler) error
}
