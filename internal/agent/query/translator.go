// Package query turns a structured Intent into an executed QueryResult. The
// model drafts free-form SQL; execution then routes by shape, degrading from
// direct execution down to a small set of constrained store operations. A
// query that fits no recognized shape fails closed: no store call is made.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/catalog"
	"github.com/dataspeak-agent/server/internal/agent/graph/parsers"
	"github.com/dataspeak-agent/server/internal/agent/graph/prompts"
	"github.com/dataspeak-agent/server/internal/agent/model"
	errx "github.com/dataspeak-agent/server/internal/core/error"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

const (
	// DefaultRowLimit caps scoped reads when the drafted query has no LIMIT.
	DefaultRowLimit = 100
	// DefaultDistinctPageSize is the page size of the client-side distinct
	// count fallback.
	DefaultDistinctPageSize = 1000
	// maxDistinctPages bounds the client-side distinct scan.
	maxDistinctPages = 50
)

type Translator struct {
	llm              model.Completer
	store            model.DataStore
	schemas          *catalog.Cache
	rowLimit         int
	distinctPageSize int
}

type Option func(*Translator)

func WithRowLimit(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.rowLimit = n
		}
	}
}

func WithDistinctPageSize(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.distinctPageSize = n
		}
	}
}

func NewTranslator(llm model.Completer, store model.DataStore, schemas *catalog.Cache, opts ...Option) *Translator {
	t := &Translator{
		llm:              llm,
		store:            store,
		schemas:          schemas,
		rowLimit:         DefaultRowLimit,
		distinctPageSize: DefaultDistinctPageSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Outcome is everything one translation pass produced.
type Outcome struct {
	Schemas  []model.TableSchema
	Strategy *model.QueryStrategy
	Result   *model.QueryResult
}

// Run resolves schemas for the intent's tables, drafts a query and executes
// it. It never returns an error: failures land in Result.Error.
func (t *Translator) Run(ctx context.Context, intent *model.Intent, cc *model.ConversationContext) *Outcome {
	schemas := t.schemas.ResolveSchemas(ctx, intent.TablesNeeded)
	strategy := t.draft(ctx, intent, schemas, cc)
	result := t.execute(ctx, strategy)
	return &Outcome{Schemas: schemas, Strategy: strategy, Result: result}
}

// draft asks the model for a query; on any failure it falls back to a trivial
// count over the first needed table.
func (t *Translator) draft(ctx context.Context, intent *model.Intent, schemas []model.TableSchema, cc *model.ConversationContext) *model.QueryStrategy {
	fallback := t.fallbackStrategy(intent, schemas)

	prompt, err := prompts.RenderQuery(ctx, schemas, cc, intent)
	if err != nil {
		logx.Error().Err(err).Str("component", "query").Msg("prompt render failed")
		return fallback
	}

	raw, err := t.llm.Complete(ctx, prompt)
	if err != nil {
		logx.Error().Err(errx.WrapCompletion(err)).Str("component", "query").Msg("query drafting failed")
		return fallback
	}

	strategy, recovered := parsers.Decode(raw, *fallback)
	if !recovered || strings.TrimSpace(strategy.Query) == "" {
		return fallback
	}
	if strategy.Kind == "" {
		strategy.Kind = classifyKind(strategy.Query)
	}
	return &strategy
}

func (t *Translator) fallbackStrategy(intent *model.Intent, schemas []model.TableSchema) *model.QueryStrategy {
	table := ""
	if len(intent.TablesNeeded) > 0 {
		table = intent.TablesNeeded[0]
	} else if len(schemas) > 0 {
		table = schemas[0].Name
	}
	return &model.QueryStrategy{
		Query:          fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
		Kind:           model.QuerySimpleCount,
		Explanation:    "estratégia padrão: contagem simples",
		ExpectedResult: "número total de registros",
	}
}

// execute routes the drafted query text by shape. Every path resolves to a
// QueryResult; transport and translation errors are caught, never propagated.
func (t *Translator) execute(ctx context.Context, strategy *model.QueryStrategy) *model.QueryResult {
	q := strategy.Query

	if col := distinctCountColumn(q); col != "" {
		return t.executeDistinctCount(ctx, q, col)
	}

	if raw, ok := t.store.(model.RawQueryExecutor); ok {
		rows, err := raw.ExecuteRawQuery(ctx, q)
		if err == nil {
			return &model.QueryResult{Success: true, Results: rows}
		}
		logx.Warn().Err(err).Str("component", "query").
			Msg("raw execution failed, converting to constrained operation")
	}

	return t.executeConstrained(ctx, q)
}

// executeDistinctCount tries the store-side aggregate first and falls back to
// a paginated client-side distinct scan.
func (t *Translator) executeDistinctCount(ctx context.Context, q, column string) *model.QueryResult {
	table := tableName(q)
	if table == "" {
		return translationFailure(q, "consulta sem cláusula FROM reconhecível")
	}

	if n, err := t.store.Aggregate(ctx, table, model.Aggregation{
		Type:   model.AggCountDistinct,
		Column: column,
	}); err == nil {
		return countResult(int64(n))
	} else {
		logx.Warn().Err(errx.WrapStore(err)).Str("component", "query").
			Str("table", table).Str("column", column).
			Msg("stored aggregate failed, counting distinct client-side")
	}

	distinct := make(map[string]struct{})
	for page := 0; page < maxDistinctPages; page++ {
		rows, err := t.store.ListRecords(ctx, table, model.ListOptions{
			Columns: []string{column},
			Limit:   t.distinctPageSize,
			Offset:  page * t.distinctPageSize,
		})
		if err != nil {
			return &model.QueryResult{Success: false, Error: errx.WrapStore(err).Error()}
		}
		for _, row := range rows {
			if v, ok := row[column]; ok && v != nil {
				distinct[fmt.Sprintf("%v", v)] = struct{}{}
			}
		}
		if len(rows) < t.distinctPageSize {
			break
		}
	}
	return countResult(int64(len(distinct)))
}

// executeConstrained heuristically converts the free-form query into one of
// the recognized store operations. This conversion is the security boundary:
// unmappable queries fail closed.
func (t *Translator) executeConstrained(ctx context.Context, q string) *model.QueryResult {
	table := tableName(q)
	if table == "" {
		return translationFailure(q, "consulta sem cláusula FROM reconhecível")
	}

	filters := map[string]any{}
	if col, val, ok := equalityFilter(q); ok {
		filters[col] = val
	}

	if hasCountAggregate(q) {
		n, err := t.store.CountRecords(ctx, table, filters)
		if err != nil {
			return &model.QueryResult{Success: false, Error: errx.WrapStore(err).Error()}
		}
		return countResult(n)
	}

	columns, dropped := selectColumns(q)
	limit := rowLimit(q)
	if limit <= 0 {
		limit = t.rowLimit
	}

	rows, err := t.store.ListRecords(ctx, table, model.ListOptions{
		Columns: columns,
		Filters: filters,
		Limit:   limit,
	})
	if err != nil {
		return &model.QueryResult{Success: false, Error: errx.WrapStore(err).Error()}
	}

	result := &model.QueryResult{Success: true, Results: rows, Narrowed: dropped}
	if len(dropped) > 0 {
		logx.Warn().Str("component", "query").Strs("dropped", dropped).
			Msg("constrained conversion narrowed the select list")
	}
	return result
}

func countResult(n int64) *model.QueryResult {
	return &model.QueryResult{
		Success: true,
		Results: []map[string]any{{"count": n}},
	}
}

func translationFailure(q, reason string) *model.QueryResult {
	logx.Warn().Str("component", "query").Str("query", q).Str("reason", reason).
		Msg("translation failed closed")
	return &model.QueryResult{
		Success: false,
		Error:   fmt.Sprintf("%s: %s", errx.TranslationErrorMessage, reason),
	}
}

func classifyKind(q string) model.QueryKind {
	switch {
	case distinctCountColumn(q) != "":
		return model.QueryCountDistinct
	case hasCountAggregate(q):
		return model.QuerySimpleCount
	default:
		return model.QueryList
	}
}
