package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

type fakeStore struct {
	listCalls     int
	describeCalls map[string]int
	tables        []model.TableInfo
	listErr       error
	describeErr   map[string]error
	records       map[string][]map[string]any
	recordsErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		describeCalls: map[string]int{},
		describeErr:   map[string]error{},
		records:       map[string][]map[string]any{},
		tables: []model.TableInfo{
			{Name: "qualified_leads", RowCount: 120, Columns: []string{"id", "name", "email"}},
			{Name: "conversas", RowCount: 300, Columns: []string{"id", "lead_id", "started_at"}},
		},
	}
}

func (f *fakeStore) ListTables(ctx context.Context) ([]model.TableInfo, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tables, nil
}

func (f *fakeStore) DescribeTable(ctx context.Context, name string) (*model.TableInfo, error) {
	f.describeCalls[name]++
	if err := f.describeErr[name]; err != nil {
		return nil, err
	}
	for _, t := range f.tables {
		if t.Name == name {
			info := t
			return &info, nil
		}
	}
	return nil, errors.New("unknown table")
}

func (f *fakeStore) ListRecords(ctx context.Context, table string, opts model.ListOptions) ([]map[string]any, error) {
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	return f.records[table], nil
}

func (f *fakeStore) CountRecords(ctx context.Context, table string, filters map[string]any) (int64, error) {
	return 0, errors.New("not used")
}

func (f *fakeStore) Aggregate(ctx context.Context, table string, agg model.Aggregation) (float64, error) {
	return 0, errors.New("not used")
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestDiscoverTables_CachedWithinTTL(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := New(store, WithClock(clock.now))

	first := cache.DiscoverTables(context.Background())
	clock.advance(4 * time.Minute)
	second := cache.DiscoverTables(context.Background())

	assert.Equal(t, 1, store.listCalls, "second call within TTL must not re-fetch")
	require.NotEmpty(t, first)
	assert.Same(t, &first[0], &second[0], "cached catalog should be the same backing array")
}

func TestDiscoverTables_RefetchAfterTTL(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := New(store, WithClock(clock.now))

	cache.DiscoverTables(context.Background())
	clock.advance(DefaultTTL + time.Second)
	cache.DiscoverTables(context.Background())

	assert.Equal(t, 2, store.listCalls, "expiry must trigger exactly one re-fetch")
}

func TestDiscoverTables_EmptyOnFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	cache := New(store)

	got := cache.DiscoverTables(context.Background())

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDiscoverTables_StaleServedWhenRefreshFails(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := New(store, WithClock(clock.now))

	first := cache.DiscoverTables(context.Background())
	require.Len(t, first, 2)

	clock.advance(DefaultTTL + time.Second)
	store.listErr = errors.New("connection refused")
	second := cache.DiscoverTables(context.Background())

	assert.Equal(t, first, second)
}

func TestResolveSchemas_PartialFailureTolerated(t *testing.T) {
	store := newFakeStore()
	store.describeErr["conversas"] = errors.New("permission denied")
	store.records["qualified_leads"] = []map[string]any{
		{"id": 1, "name": "Ana", "email": "ana@acme.com.br"},
		{"id": 2, "name": "Bruno", "email": "bruno@acme.com.br"},
		{"id": 3, "name": "Clara", "email": "clara@acme.com.br"},
	}
	cache := New(store)

	got := cache.ResolveSchemas(context.Background(), []string{"qualified_leads", "conversas"})

	require.Len(t, got, 1, "failing table must be omitted, not propagated")
	assert.Equal(t, "qualified_leads", got[0].Name)
	assert.Equal(t, int64(120), got[0].RowCount)
	assert.LessOrEqual(t, len(got[0].SampleRows), model.MaxSampleRows)
}

func TestResolveSchemas_CachedPerTable(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := New(store, WithClock(clock.now))

	cache.ResolveSchemas(context.Background(), []string{"qualified_leads"})
	clock.advance(time.Minute)
	cache.ResolveSchemas(context.Background(), []string{"qualified_leads"})

	assert.Equal(t, 1, store.describeCalls["qualified_leads"])

	clock.advance(DefaultTTL)
	cache.ResolveSchemas(context.Background(), []string{"qualified_leads"})
	assert.Equal(t, 2, store.describeCalls["qualified_leads"])
}

func TestResolveSchemas_SampleFailureKeepsSchema(t *testing.T) {
	store := newFakeStore()
	store.recordsErr = errors.New("timeout")
	cache := New(store)

	got := cache.ResolveSchemas(context.Background(), []string{"qualified_leads"})

	require.Len(t, got, 1)
	assert.Empty(t, got[0].SampleRows)
	assert.Equal(t, []string{"id", "name", "email"}, got[0].Columns)
}
