package tools

import "context"

// Image is an outbound image handed to a Messenger.
type Image struct {
	Data []byte
	MIME string
	Name string
}

// Messenger delivers outbound messages to the front-end that originated
// the current turn. Transports (Telegram, web chat) implement it;
// side-effecting tools reach it through the context.
type Messenger interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendImage(ctx context.Context, conversationID string, img Image, caption string) error
	SendTyping(ctx context.Context, conversationID string) error
}

type contextKey string

const (
	conversationIDKey contextKey = "conversation_id"
	messengerKey      contextKey = "messenger"
)

// WithConversationID adds the conversation ID to the context.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, id)
}

// ConversationIDFromContext extracts the conversation ID from the context.
// Returns "default" if not set.
func ConversationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(conversationIDKey).(string); ok && id != "" {
		return id
	}
	return "default"
}

// WithMessenger adds the originating transport to the context. Nil
// messengers are ignored (the original context is returned unchanged).
func WithMessenger(ctx context.Context, m Messenger) context.Context {
	if m == nil {
		return ctx
	}
	return context.WithValue(ctx, messengerKey, m)
}

// MessengerFromContext extracts the transport from the context. Returns
// nil if no messenger was set.
func MessengerFromContext(ctx context.Context) Messenger {
	if m, ok := ctx.Value(messengerKey).(Messenger); ok {
		return m
	}
	return nil
}
