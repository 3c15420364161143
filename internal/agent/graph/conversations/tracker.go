// Package conversations maintains the rolling conversation context used to
// resolve back-references like "mesmo email" or "essa tabela".
package conversations

import (
	"context"
	"time"

	"github.com/dataspeak-agent/server/internal/agent/model"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// Tracker wraps a ContextRepository with the update policy of the pipeline.
// Every method is best-effort: repository failures are logged and absorbed,
// because context is a hint, never a correctness requirement.
type Tracker struct {
	repo model.ContextRepository
	now  func() time.Time
}

func NewTracker(repo model.ContextRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// WithClock replaces the timestamp source. Used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Snapshot returns the current context for a conversation, empty when the
// conversation is unknown or the repository fails.
func (t *Tracker) Snapshot(ctx context.Context, conversationID string) *model.ConversationContext {
	cc, err := t.repo.Load(ctx, conversationID)
	if err != nil {
		logx.Warn().Err(err).
			Str("component", "conversations").
			Str("conversation_id", conversationID).
			Msg("context load failed, starting empty")
		return &model.ConversationContext{}
	}
	if cc == nil {
		return &model.ConversationContext{}
	}
	return cc
}

// Observe records one resolved request: the raw message, its intent and any
// extracted email. History stays newest first and capped at
// model.MaxContextRecords; the last-email/table/operation fields only move
// forward when the new turn actually carries a value.
func (t *Tracker) Observe(ctx context.Context, conversationID, message string, intent *model.Intent, email string) *model.ConversationContext {
	cc := t.Snapshot(ctx, conversationID)

	record := model.ContextRecord{Message: message, Intent: intent, At: t.now()}
	cc.History = append([]model.ContextRecord{record}, cc.History...)
	if len(cc.History) > model.MaxContextRecords {
		cc.History = cc.History[:model.MaxContextRecords]
	}

	if email != "" {
		cc.LastEmail = email
	}
	if intent != nil {
		if len(intent.TablesNeeded) > 0 {
			cc.LastTable = intent.TablesNeeded[0]
		}
		cc.LastOperation = string(intent.AnalysisType)
	}

	if err := t.repo.Save(ctx, conversationID, cc); err != nil {
		logx.Warn().Err(err).
			Str("component", "conversations").
			Str("conversation_id", conversationID).
			Msg("context save failed, continuing with in-flight snapshot")
	}
	return cc
}

// Forget drops everything remembered about a conversation.
func (t *Tracker) Forget(ctx context.Context, conversationID string) {
	if err := t.repo.Clear(ctx, conversationID); err != nil {
		logx.Warn().Err(err).
			Str("component", "conversations").
			Str("conversation_id", conversationID).
			Msg("context clear failed")
	}
}
