package model

import "context"

// AggregationType names the store-side aggregations the pipeline can request.
type AggregationType string

const (
	AggCount         AggregationType = "count"
	AggCountDistinct AggregationType = "count_distinct"
	AggSum           AggregationType = "sum"
	AggAvg           AggregationType = "avg"
	AggMin           AggregationType = "min"
	AggMax           AggregationType = "max"
)

// ListOptions scopes a read against one table. Filters are single-column
// equality matches; anything richer has to go through raw query execution.
type ListOptions struct {
	Columns []string
	Filters map[string]any
	OrderBy string
	Limit   int
	Offset  int
}

// Aggregation describes one store-side aggregate call.
type Aggregation struct {
	Type    AggregationType
	Column  string
	Filters map[string]any
}

// DataStore is the tabular store collaborator. Implementations own their own
// timeout policy; the pipeline only reacts to the errors they return.
type DataStore interface {
	// ListTables returns the table catalog with row counts and column names.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// DescribeTable returns columns and row count for a single table.
	DescribeTable(ctx context.Context, name string) (*TableInfo, error)

	// ListRecords performs a scoped read against one table.
	ListRecords(ctx context.Context, table string, opts ListOptions) ([]map[string]any, error)

	// CountRecords counts rows matching the equality filters.
	CountRecords(ctx context.Context, table string, filters map[string]any) (int64, error)

	// Aggregate runs a store-side aggregation and returns its scalar result.
	Aggregate(ctx context.Context, table string, agg Aggregation) (float64, error)
}

// RawQueryExecutor is an optional DataStore capability. Its absence (or an
// execution error) routes the translator to the constrained-operation fallback.
type RawQueryExecutor interface {
	ExecuteRawQuery(ctx context.Context, query string) ([]map[string]any, error)
}
