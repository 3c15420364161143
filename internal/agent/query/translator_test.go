package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspeak-agent/server/internal/agent/catalog"
	"github.com/dataspeak-agent/server/internal/agent/model"
)

// recordingStore implements model.DataStore and records every call.
type recordingStore struct {
	tables []model.TableInfo

	countCalls []struct {
		table   string
		filters map[string]any
	}
	countResult int64
	countErr    error

	listCalls []struct {
		table string
		opts  model.ListOptions
	}
	listPages [][]map[string]any
	listErr   error

	aggCalls  []model.Aggregation
	aggResult float64
	aggErr    error
}

func (s *recordingStore) ListTables(ctx context.Context) ([]model.TableInfo, error) {
	return s.tables, nil
}

func (s *recordingStore) DescribeTable(ctx context.Context, name string) (*model.TableInfo, error) {
	for _, t := range s.tables {
		if t.Name == name {
			info := t
			return &info, nil
		}
	}
	return nil, errors.New("unknown table")
}

func (s *recordingStore) ListRecords(ctx context.Context, table string, opts model.ListOptions) ([]map[string]any, error) {
	s.listCalls = append(s.listCalls, struct {
		table string
		opts  model.ListOptions
	}{table, opts})
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.listPages) == 0 {
		return nil, nil
	}
	page := s.listPages[0]
	s.listPages = s.listPages[1:]
	return page, nil
}

func (s *recordingStore) CountRecords(ctx context.Context, table string, filters map[string]any) (int64, error) {
	s.countCalls = append(s.countCalls, struct {
		table   string
		filters map[string]any
	}{table, filters})
	return s.countResult, s.countErr
}

func (s *recordingStore) Aggregate(ctx context.Context, table string, agg model.Aggregation) (float64, error) {
	s.aggCalls = append(s.aggCalls, agg)
	return s.aggResult, s.aggErr
}

func (s *recordingStore) calls() int {
	return len(s.countCalls) + len(s.listCalls) + len(s.aggCalls)
}

// rawStore additionally exposes the optional raw execution capability.
type rawStore struct {
	recordingStore
	rawCalls []string
	rawRows  []map[string]any
	rawErr   error
}

func (s *rawStore) ExecuteRawQuery(ctx context.Context, query string) ([]map[string]any, error) {
	s.rawCalls = append(s.rawCalls, query)
	return s.rawRows, s.rawErr
}

type fixedCompleter struct {
	response string
	err      error
}

func (c *fixedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.response, c.err
}

func leadTables() []model.TableInfo {
	return []model.TableInfo{
		{Name: "qualified_leads", RowCount: 120, Columns: []string{"id", "name", "email"}},
	}
}

func draftResponse(query, kind string) string {
	return fmt.Sprintf(`{"query": "%s", "query_type": "%s", "explanation": "x", "expected_result": "y"}`, query, kind)
}

func countIntent() *model.Intent {
	return &model.Intent{
		AnalysisType: model.AnalysisCount,
		TablesNeeded: []string{"qualified_leads"},
		Complexity:   model.ComplexitySimple,
		Confidence:   0.9,
	}
}

func newTranslator(llm model.Completer, store model.DataStore, opts ...Option) *Translator {
	return NewTranslator(llm, store, catalog.New(store), opts...)
}

func TestRun_SimpleCountConstrained(t *testing.T) {
	store := &recordingStore{tables: leadTables(), countResult: 120}
	llm := &fixedCompleter{response: draftResponse("SELECT COUNT(*) FROM qualified_leads", "simple_count")}
	tr := newTranslator(llm, store)

	out := tr.Run(context.Background(), countIntent(), &model.ConversationContext{})

	require.True(t, out.Result.Success)
	require.Len(t, store.countCalls, 1)
	assert.Equal(t, "qualified_leads", store.countCalls[0].table)
	assert.Empty(t, store.countCalls[0].filters)
	assert.Equal(t, int64(120), out.Result.Results[0]["count"])
}

func TestExecute_NoFromFailsClosed(t *testing.T) {
	store := &recordingStore{tables: leadTables()}
	tr := newTranslator(&fixedCompleter{}, store)

	result := tr.execute(context.Background(), &model.QueryStrategy{Query: "SELECT 1 + 1"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "could not be translated")
	assert.Zero(t, store.calls(), "untranslatable query must not reach the store")
}

func TestExecute_EqualityFilterExtracted(t *testing.T) {
	store := &recordingStore{tables: leadTables()}
	tr := newTranslator(&fixedCompleter{}, store)

	tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT COUNT(*) FROM qualified_leads WHERE email = 'ana@acme.com.br'",
	})

	require.Len(t, store.countCalls, 1)
	assert.Equal(t, map[string]any{"email": "ana@acme.com.br"}, store.countCalls[0].filters)
}

func TestExecute_ListWithColumnsAndLimit(t *testing.T) {
	store := &recordingStore{tables: leadTables()}
	tr := newTranslator(&fixedCompleter{}, store)

	tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT name, email FROM qualified_leads LIMIT 25",
	})

	require.Len(t, store.listCalls, 1)
	assert.Equal(t, []string{"name", "email"}, store.listCalls[0].opts.Columns)
	assert.Equal(t, 25, store.listCalls[0].opts.Limit)
}

func TestExecute_DefaultLimitApplied(t *testing.T) {
	store := &recordingStore{tables: leadTables()}
	tr := newTranslator(&fixedCompleter{}, store)

	tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT name FROM qualified_leads",
	})

	require.Len(t, store.listCalls, 1)
	assert.Equal(t, DefaultRowLimit, store.listCalls[0].opts.Limit)
}

func TestExecute_FunctionColumnsNarrowed(t *testing.T) {
	store := &recordingStore{tables: leadTables()}
	tr := newTranslator(&fixedCompleter{}, store)

	result := tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT name, UPPER(email), CASE WHEN x THEN 1 END FROM qualified_leads",
	})

	require.True(t, result.Success)
	require.Len(t, store.listCalls, 1)
	assert.Equal(t, []string{"name"}, store.listCalls[0].opts.Columns)
	assert.Len(t, result.Narrowed, 2, "dropped expressions must be surfaced, not silent")
}

func TestExecute_DistinctCountViaStoredAggregate(t *testing.T) {
	store := &recordingStore{tables: leadTables(), aggResult: 42}
	tr := newTranslator(&fixedCompleter{}, store)

	result := tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT COUNT(DISTINCT email) FROM qualified_leads",
	})

	require.True(t, result.Success)
	require.Len(t, store.aggCalls, 1)
	assert.Equal(t, model.AggCountDistinct, store.aggCalls[0].Type)
	assert.Equal(t, "email", store.aggCalls[0].Column)
	assert.Equal(t, int64(42), result.Results[0]["count"])
}

func TestExecute_DistinctCountClientSideFallback(t *testing.T) {
	store := &recordingStore{
		tables: leadTables(),
		aggErr: errors.New("function does not exist"),
		listPages: [][]map[string]any{
			{{"email": "a@x.com"}, {"email": "b@x.com"}, {"email": "a@x.com"}},
		},
	}
	tr := newTranslator(&fixedCompleter{}, store, WithDistinctPageSize(10))

	result := tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT COUNT(DISTINCT email) FROM qualified_leads",
	})

	require.True(t, result.Success)
	assert.Equal(t, int64(2), result.Results[0]["count"])
	require.Len(t, store.listCalls, 1)
	assert.Equal(t, []string{"email"}, store.listCalls[0].opts.Columns)
}

func TestExecute_DistinctCountPaginates(t *testing.T) {
	store := &recordingStore{
		tables: leadTables(),
		aggErr: errors.New("unavailable"),
		listPages: [][]map[string]any{
			{{"email": "a@x.com"}, {"email": "b@x.com"}},
			{{"email": "c@x.com"}},
		},
	}
	tr := newTranslator(&fixedCompleter{}, store, WithDistinctPageSize(2))

	result := tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT COUNT(DISTINCT email) FROM qualified_leads",
	})

	require.True(t, result.Success)
	assert.Equal(t, int64(3), result.Results[0]["count"])
	require.Len(t, store.listCalls, 2)
	assert.Equal(t, 2, store.listCalls[1].opts.Offset)
}

func TestExecute_RawCapabilityPreferred(t *testing.T) {
	store := &rawStore{
		recordingStore: recordingStore{tables: leadTables()},
		rawRows:        []map[string]any{{"total": 7}},
	}
	tr := newTranslator(&fixedCompleter{}, store)

	result := tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT date_trunc('day', created_at), COUNT(*) FROM conversas GROUP BY 1",
	})

	require.True(t, result.Success)
	require.Len(t, store.rawCalls, 1)
	assert.Zero(t, len(store.countCalls), "raw success must not fall through")
}

func TestExecute_RawFailureFallsBackToConstrained(t *testing.T) {
	store := &rawStore{
		recordingStore: recordingStore{tables: leadTables(), countResult: 9},
		rawErr:         errors.New("permission denied"),
	}
	tr := newTranslator(&fixedCompleter{}, store)

	result := tr.execute(context.Background(), &model.QueryStrategy{
		Query: "SELECT COUNT(*) FROM qualified_leads",
	})

	require.True(t, result.Success)
	require.Len(t, store.countCalls, 1)
	assert.Equal(t, int64(9), result.Results[0]["count"])
}

func TestDraft_FallbackOnModelFailure(t *testing.T) {
	store := &recordingStore{tables: leadTables()}
	tr := newTranslator(&fixedCompleter{err: errors.New("timeout")}, store)

	strategy := tr.draft(context.Background(), countIntent(), nil, &model.ConversationContext{})

	assert.Equal(t, "SELECT COUNT(*) FROM qualified_leads", strategy.Query)
	assert.Equal(t, model.QuerySimpleCount, strategy.Kind)
}

func TestRun_StoreFailureIsStructured(t *testing.T) {
	store := &recordingStore{tables: leadTables(), countErr: errors.New("connection reset")}
	llm := &fixedCompleter{response: draftResponse("SELECT COUNT(*) FROM qualified_leads", "simple_count")}
	tr := newTranslator(llm, store)

	out := tr.Run(context.Background(), countIntent(), &model.ConversationContext{})

	assert.False(t, out.Result.Success)
	assert.NotEmpty(t, out.Result.Error)
}

func TestFragment_TableNameShapes(t *testing.T) {
	assert.Equal(t, "qualified_leads", tableName(`SELECT * FROM qualified_leads`))
	assert.Equal(t, "qualified_leads", tableName(`select count(*) from "qualified_leads" where x = 'y'`))
	assert.Empty(t, tableName(`SELECT 1`))
}
