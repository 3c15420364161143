package repo

import (
	"context"
	"sync"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

// MemoryContextRepository keeps conversation context in process memory.
// This is the default repository: the pipeline only promises context for the
// lifetime of the process. Concurrent requests on the same conversation are
// last-writer-wins, which is acceptable for a hint store.
type MemoryContextRepository struct {
	mu       sync.RWMutex
	contexts map[string]*model.ConversationContext
}

func NewMemoryContextRepository() *MemoryContextRepository {
	return &MemoryContextRepository{contexts: make(map[string]*model.ConversationContext)}
}

func (r *MemoryContextRepository) Load(ctx context.Context, conversationID string) (*model.ConversationContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cc, ok := r.contexts[conversationID]
	if !ok {
		return &model.ConversationContext{}, nil
	}
	return copyContext(cc), nil
}

func (r *MemoryContextRepository) Save(ctx context.Context, conversationID string, cc *model.ConversationContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contexts[conversationID] = copyContext(cc)
	return nil
}

func (r *MemoryContextRepository) Clear(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.contexts, conversationID)
	return nil
}

// copyContext detaches the history slice so callers cannot mutate the stored
// snapshot after Save returns.
func copyContext(cc *model.ConversationContext) *model.ConversationContext {
	if cc == nil {
		return &model.ConversationContext{}
	}
	out := *cc
	out.History = make([]model.ContextRecord, len(cc.History))
	copy(out.History, cc.History)
	return &out
}

var _ model.ContextRepository = (*MemoryContextRepository)(nil)
