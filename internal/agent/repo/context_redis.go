package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dataspeak-agent/server/internal/agent/model"
	errx "github.com/dataspeak-agent/server/internal/core/error"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// RedisContextRepository stores one JSON snapshot of the conversation context
// per conversation, with a TTL refreshed on every save.
type RedisContextRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisContextRepository(rdb redis.Cmdable, ttl time.Duration) *RedisContextRepository {
	return &RedisContextRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisContextRepository) contextKey(conversationID string) string {
	return fmt.Sprintf("context:%s:snapshot", conversationID)
}

func (r *RedisContextRepository) Load(ctx context.Context, conversationID string) (*model.ConversationContext, error) {
	key := r.contextKey(conversationID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.ConversationContext{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load context from redis")
		return nil, errx.WrapRedis(err)
	}

	var cc model.ConversationContext
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal context snapshot")
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &cc, nil
}

func (r *RedisContextRepository) Save(ctx context.Context, conversationID string, cc *model.ConversationContext) error {
	b, err := json.Marshal(cc)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal context")
		return fmt.Errorf("marshal context: %w", err)
	}
	key := r.contextKey(conversationID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store context in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisContextRepository) Clear(ctx context.Context, conversationID string) error {
	key := r.contextKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete context from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ContextRepository = (*RedisContextRepository)(nil)
