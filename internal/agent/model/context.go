package model

import "context"

// ContextRepository persists the rolling ConversationContext per conversation.
// Implementations are best-effort: the pipeline logs and continues when a
// repository call fails, because context is a hint, not a correctness input.
type ContextRepository interface {
	// Load retrieves the context for a conversation. A missing conversation
	// yields an empty context, not an error.
	Load(ctx context.Context, conversationID string) (*ConversationContext, error)

	// Save stores the full context snapshot for a conversation.
	Save(ctx context.Context, conversationID string, cc *ConversationContext) error

	// Clear removes all remembered context for a conversation.
	Clear(ctx context.Context, conversationID string) error
}
