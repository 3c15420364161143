package model

import "time"

// AnalysisType classifies what kind of data question the user asked.
type AnalysisType string

const (
	AnalysisCount     AnalysisType = "count"
	AnalysisList      AnalysisType = "list"
	AnalysisAggregate AnalysisType = "aggregate"
	AnalysisJoin      AnalysisType = "join"
	AnalysisComplex   AnalysisType = "complex"
)

// Complexity is a coarse effort estimate attached to an Intent.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Intent is the structured classification of one user request. It is produced
// once per request and is immutable afterwards.
type Intent struct {
	AnalysisType AnalysisType `json:"analysis_type"`
	TablesNeeded []string     `json:"tables_needed"`
	Operations   []string     `json:"operations"`
	Complexity   Complexity   `json:"complexity"`
	Explanation  string       `json:"explanation"`
	Confidence   float64      `json:"confidence"`
	DirectAnswer string       `json:"direct_answer,omitempty"`
}

// MetadataOnly reports whether the intent can be answered without touching
// any table, i.e. the classifier already produced a direct answer.
func (i *Intent) MetadataOnly() bool {
	return i != nil && len(i.TablesNeeded) == 0 && i.DirectAnswer != ""
}

// TableInfo is a catalog entry for one discovered table.
type TableInfo struct {
	Name     string   `json:"name"`
	RowCount int64    `json:"row_count"`
	Columns  []string `json:"columns"`
}

// MaxSampleRows bounds how many sample rows a TableSchema carries.
const MaxSampleRows = 2

// TableSchema is the resolved shape of one table, owned by the schema cache.
type TableSchema struct {
	Name       string           `json:"name"`
	Columns    []string         `json:"columns"`
	RowCount   int64            `json:"row_count"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// QueryKind tags the shape of a drafted query.
type QueryKind string

const (
	QueryCountDistinct QueryKind = "count_distinct"
	QuerySimpleCount   QueryKind = "simple_count"
	QueryList          QueryKind = "list"
	QueryAggregation   QueryKind = "aggregation"
	QueryComplex       QueryKind = "complex"
)

// QueryStrategy is the transient output of the SQL drafting stage.
type QueryStrategy struct {
	Query          string    `json:"query"`
	Kind           QueryKind `json:"query_type"`
	Explanation    string    `json:"explanation"`
	ExpectedResult string    `json:"expected_result"`
}

// QueryResult is the outcome of executing one QueryStrategy. Narrowed lists
// expressions the constrained-operation conversion had to drop, so downstream
// stages can say the result is partial instead of pretending it is complete.
type QueryResult struct {
	Success  bool             `json:"success"`
	Results  []map[string]any `json:"results,omitempty"`
	Error    string           `json:"error,omitempty"`
	Narrowed []string         `json:"narrowed,omitempty"`
}

// InsightReport is the bounded analysis of a query result.
type InsightReport struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
}

// MaxContextRecords bounds the rolling conversation history.
const MaxContextRecords = 5

// ContextRecord is one remembered turn: what was asked and how it was classified.
type ContextRecord struct {
	Message string    `json:"message"`
	Intent  *Intent   `json:"intent,omitempty"`
	At      time.Time `json:"at"`
}

// ConversationContext is the rolling memory used to resolve back-references
// ("mesmo email", "essa tabela"). History is newest first and capped at
// MaxContextRecords. It is a best-effort hint, never a correctness input.
type ConversationContext struct {
	LastEmail     string          `json:"last_email,omitempty"`
	LastTable     string          `json:"last_table,omitempty"`
	LastOperation string          `json:"last_operation,omitempty"`
	History       []ContextRecord `json:"history,omitempty"`
}

// References are the contextual signals extracted from the raw request text
// before any LLM call: literal tokens, back-reference flags and coarse verb
// intent.
type References struct {
	Email       string
	Table       string
	SameEmail   bool
	SameTable   bool
	WantsCount  bool
	WantsList   bool
	WantsSearch bool
}

// ClassifierVerdict is the fast-path decision for one request.
type ClassifierVerdict struct {
	Matched  bool
	Category string
	Reply    string
}

// QueryInput represents the input for processing user requests.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// PipelineResponse is the externally visible output of one request.
type PipelineResponse struct {
	Success     bool                 `json:"success"`
	Response    string               `json:"response"`
	FastPath    bool                 `json:"fast_path"`
	Intent      *Intent              `json:"intent,omitempty"`
	Schemas     []TableSchema        `json:"schemas,omitempty"`
	QueryResult *QueryResult         `json:"query_result,omitempty"`
	Analysis    *InsightReport       `json:"analysis,omitempty"`
	Context     *ConversationContext `json:"context,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// PipelineState stores per-invocation state for the pipeline graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler) or compose.ProcessState,
//     which Eino serializes, so no additional locking is required.
type PipelineState struct {
	ConversationID string
	Query          string
	Context        *ConversationContext
	Intent         *Intent
	Schemas        []TableSchema
	Strategy       *QueryStrategy
	QueryResult    *QueryResult
	Analysis       *InsightReport

	// Accumulated total LLM cost (USD) across model invocations for this request
	TotalCostUSD float64
}
