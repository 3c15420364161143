package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisContextRepository_RoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := NewRedisContextRepository(rdb, time.Hour)
	ctx := context.Background()

	saved := &model.ConversationContext{
		LastEmail:     "ana@acme.com.br",
		LastTable:     "qualified_leads",
		LastOperation: "count",
		History: []model.ContextRecord{
			{Message: "quantos leads temos?", At: time.Unix(1700000000, 0).UTC()},
		},
	}
	require.NoError(t, r.Save(ctx, "conv-1", saved))

	got, err := r.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, saved.LastEmail, got.LastEmail)
	assert.Equal(t, saved.LastTable, got.LastTable)
	require.Len(t, got.History, 1)
	assert.Equal(t, "quantos leads temos?", got.History[0].Message)
}

func TestRedisContextRepository_MissingConversationIsEmpty(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := NewRedisContextRepository(rdb, time.Hour)

	got, err := r.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, got.History)
	assert.Empty(t, got.LastEmail)
}

func TestRedisContextRepository_TTLSet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	r := NewRedisContextRepository(rdb, 30*time.Minute)

	require.NoError(t, r.Save(context.Background(), "conv-1", &model.ConversationContext{LastTable: "conversas"}))

	ttl := mr.TTL("context:conv-1:snapshot")
	assert.Equal(t, 30*time.Minute, ttl)
}

func TestRedisContextRepository_Clear(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := NewRedisContextRepository(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, "conv-1", &model.ConversationContext{LastTable: "conversas"}))
	require.NoError(t, r.Clear(ctx, "conv-1"))

	got, err := r.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got.LastTable)
}

func TestMemoryContextRepository_SnapshotDetached(t *testing.T) {
	r := NewMemoryContextRepository()
	ctx := context.Background()

	cc := &model.ConversationContext{History: []model.ContextRecord{{Message: "a"}}}
	require.NoError(t, r.Save(ctx, "conv-1", cc))
	cc.History[0].Message = "mutated"

	got, err := r.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.History[0].Message)
}
