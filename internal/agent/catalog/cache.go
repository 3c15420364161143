// Package catalog caches discovered table metadata so the pipeline does not
// hit the data store on every request. Entries are time-bounded; a failure to
// refresh degrades to an empty (or partial) result, never to an error.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/dataspeak-agent/server/internal/agent/model"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// DefaultTTL applies to both the table catalog and per-table schema entries.
const DefaultTTL = 5 * time.Minute

type schemaEntry struct {
	schema    model.TableSchema
	fetchedAt time.Time
}

// Cache is shared across requests. Writes are idempotent re-fetches, but Go
// maps are not safe for concurrent mutation, so a mutex guards the entries.
type Cache struct {
	store      model.DataStore
	catalogTTL time.Duration
	schemaTTL  time.Duration
	now        func() time.Time

	mu          sync.Mutex
	catalog     []model.TableInfo
	catalogAt   time.Time
	hasCatalog  bool
	tableSchema map[string]schemaEntry
}

// Option tweaks cache construction. Tests inject a fake clock this way.
type Option func(*Cache)

func WithCatalogTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.catalogTTL = ttl }
}

func WithSchemaTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.schemaTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(store model.DataStore, opts ...Option) *Cache {
	c := &Cache{
		store:       store,
		catalogTTL:  DefaultTTL,
		schemaTTL:   DefaultTTL,
		now:         time.Now,
		tableSchema: make(map[string]schemaEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DiscoverTables returns the table catalog, serving from cache while the
// entry is younger than the catalog TTL. On collaborator failure it returns
// an empty catalog and keeps the stale timestamp so the next call retries.
func (c *Cache) DiscoverTables(ctx context.Context) []model.TableInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasCatalog && c.now().Sub(c.catalogAt) < c.catalogTTL {
		return c.catalog
	}

	tables, err := c.store.ListTables(ctx)
	if err != nil {
		logx.Error().Err(err).Str("component", "catalog").Msg("table discovery failed")
		if c.hasCatalog {
			// serve the stale catalog rather than nothing
			return c.catalog
		}
		return []model.TableInfo{}
	}

	c.catalog = tables
	c.catalogAt = c.now()
	c.hasCatalog = true
	logx.Debug().Str("component", "catalog").Int("tables", len(tables)).Msg("table catalog refreshed")
	return c.catalog
}

// ResolveSchemas returns schemas for the requested tables, column list plus
// row count plus up to model.MaxSampleRows sample rows each. Tables are
// resolved independently: a failure on one is logged and skipped, so partial
// results are valid.
func (c *Cache) ResolveSchemas(ctx context.Context, names []string) []model.TableSchema {
	schemas := make([]model.TableSchema, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		s, ok := c.resolveOne(ctx, name)
		if !ok {
			continue
		}
		schemas = append(schemas, s)
	}
	return schemas
}

func (c *Cache) resolveOne(ctx context.Context, name string) (model.TableSchema, bool) {
	c.mu.Lock()
	if entry, ok := c.tableSchema[name]; ok && c.now().Sub(entry.fetchedAt) < c.schemaTTL {
		c.mu.Unlock()
		return entry.schema, true
	}
	c.mu.Unlock()

	info, err := c.store.DescribeTable(ctx, name)
	if err != nil {
		logx.Warn().Err(err).Str("component", "catalog").Str("table", name).
			Msg("describe failed, omitting table from schema set")
		return model.TableSchema{}, false
	}

	schema := model.TableSchema{
		Name:     info.Name,
		Columns:  info.Columns,
		RowCount: info.RowCount,
	}

	rows, err := c.store.ListRecords(ctx, name, model.ListOptions{Limit: model.MaxSampleRows})
	if err != nil {
		// sample rows are a nice-to-have, the schema is still usable
		logx.Warn().Err(err).Str("component", "catalog").Str("table", name).
			Msg("sample row fetch failed")
	} else {
		if len(rows) > model.MaxSampleRows {
			rows = rows[:model.MaxSampleRows]
		}
		schema.SampleRows = rows
	}

	c.mu.Lock()
	c.tableSchema[name] = schemaEntry{schema: schema, fetchedAt: c.now()}
	c.mu.Unlock()
	return schema, true
}
