// Package intent produces exactly one structured Intent per request. The
// happy path asks the low-temperature model; every failure mode falls back to
// local heuristics, so resolution never errors, it only degrades confidence.
package intent

import (
	"context"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/catalog"
	"github.com/dataspeak-agent/server/internal/agent/graph/conversations"
	"github.com/dataspeak-agent/server/internal/agent/graph/parsers"
	"github.com/dataspeak-agent/server/internal/agent/graph/prompts"
	"github.com/dataspeak-agent/server/internal/agent/model"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

const (
	// DefaultConfidence is applied when the model omits the field.
	DefaultConfidence = 0.8
	// FallbackConfidence marks an intent derived from heuristics.
	FallbackConfidence = 0.7
)

// intentPayload mirrors the JSON shape demanded from the model.
type intentPayload struct {
	AnalysisType string   `json:"analysis_type"`
	TablesNeeded []string `json:"tables_needed"`
	Operations   []string `json:"operations"`
	Complexity   string   `json:"complexity"`
	Explanation  string   `json:"explanation"`
	Confidence   float64  `json:"confidence"`
	DirectAnswer string   `json:"direct_answer"`
}

// Resolution bundles everything one intent pass produced, so downstream
// stages reuse the same catalog and context snapshot.
type Resolution struct {
	Intent     *model.Intent
	Context    *model.ConversationContext
	References model.References
	Catalog    []model.TableInfo
}

type Coordinator struct {
	llm      model.Completer
	catalog  *catalog.Cache
	contexts *conversations.Tracker
}

func NewCoordinator(llm model.Completer, cat *catalog.Cache, contexts *conversations.Tracker) *Coordinator {
	return &Coordinator{llm: llm, catalog: cat, contexts: contexts}
}

// Resolve classifies one request. It never returns an error: transport and
// decode failures degrade into the heuristic fallback at FallbackConfidence.
// The context store is updated with the resolved intent before returning.
func (c *Coordinator) Resolve(ctx context.Context, conversationID, query string) *Resolution {
	tables := c.catalog.DiscoverTables(ctx)
	cc := c.contexts.Snapshot(ctx, conversationID)
	refs := ExtractReferences(query, tables)

	resolved := c.resolveWithModel(ctx, tables, cc, refs, query)
	if resolved == nil {
		resolved = c.fallbackIntent(tables, cc, refs)
		logx.Warn().
			Str("component", "intent").
			Str("conversation_id", conversationID).
			Str("analysis_type", string(resolved.AnalysisType)).
			Msg("model classification failed, using heuristic intent")
	}

	updated := c.contexts.Observe(ctx, conversationID, query, resolved, refs.Email)

	return &Resolution{
		Intent:     resolved,
		Context:    updated,
		References: refs,
		Catalog:    tables,
	}
}

func (c *Coordinator) resolveWithModel(ctx context.Context, tables []model.TableInfo, cc *model.ConversationContext, refs model.References, query string) *model.Intent {
	prompt, err := prompts.RenderIntent(ctx, tables, cc, refs, query)
	if err != nil {
		logx.Error().Err(err).Str("component", "intent").Msg("prompt render failed")
		return nil
	}

	raw, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		logx.Error().Err(err).Str("component", "intent").Msg("completion failed")
		return nil
	}

	payload, recovered := parsers.Decode(raw, intentPayload{})
	if !recovered || payload.AnalysisType == "" {
		return nil
	}

	intent := &model.Intent{
		AnalysisType: normalizeAnalysisType(payload.AnalysisType),
		TablesNeeded: keepKnownTables(payload.TablesNeeded, tables),
		Operations:   payload.Operations,
		Complexity:   normalizeComplexity(payload.Complexity),
		Explanation:  payload.Explanation,
		Confidence:   payload.Confidence,
		DirectAnswer: strings.TrimSpace(payload.DirectAnswer),
	}
	if intent.Confidence <= 0 || intent.Confidence > 1 {
		intent.Confidence = DefaultConfidence
	}

	// "mesmo email"/"mesma tabela" may only be resolvable from context
	if len(intent.TablesNeeded) == 0 && !intent.MetadataOnly() {
		if t := c.tableFromContext(cc, refs, tables); t != "" {
			intent.TablesNeeded = []string{t}
		}
	}

	return intent
}

// fallbackIntent computes an Intent purely from local heuristics: verb flags
// for the analysis type and a table-ranking chain for the target table.
func (c *Coordinator) fallbackIntent(tables []model.TableInfo, cc *model.ConversationContext, refs model.References) *model.Intent {
	analysisType := model.AnalysisComplex
	operations := []string{}
	switch {
	case refs.WantsCount:
		analysisType = model.AnalysisCount
		operations = append(operations, "count")
	case refs.WantsList, refs.WantsSearch:
		analysisType = model.AnalysisList
		operations = append(operations, "list")
	}
	if refs.Email != "" || refs.SameEmail {
		operations = append(operations, "filter")
	}

	intent := &model.Intent{
		AnalysisType: analysisType,
		Operations:   operations,
		Complexity:   model.ComplexitySimple,
		Explanation:  "classificação heurística local (modelo indisponível)",
		Confidence:   FallbackConfidence,
	}
	if t := c.tableFromContext(cc, refs, tables); t != "" {
		intent.TablesNeeded = []string{t}
	}
	return intent
}

// tableFromContext picks the target table: explicit reference, then the
// last-table back-reference, then a heuristic ranking (lead-ish tables when
// an email is in play), then the first catalog entry.
func (c *Coordinator) tableFromContext(cc *model.ConversationContext, refs model.References, tables []model.TableInfo) string {
	if refs.Table != "" {
		return refs.Table
	}
	if cc != nil && cc.LastTable != "" && (refs.SameTable || refs.SameEmail || refs.Email != "") {
		return cc.LastTable
	}
	if refs.Email != "" || refs.SameEmail {
		for _, t := range tables {
			if strings.Contains(strings.ToLower(t.Name), "lead") {
				return t.Name
			}
		}
	}
	if cc != nil && cc.LastTable != "" {
		return cc.LastTable
	}
	if len(tables) > 0 {
		return tables[0].Name
	}
	return ""
}

func keepKnownTables(requested []string, tables []model.TableInfo) []string {
	if len(requested) == 0 {
		return nil
	}
	known := make(map[string]string, len(tables))
	for _, t := range tables {
		known[strings.ToLower(t.Name)] = t.Name
	}
	kept := make([]string, 0, len(requested))
	for _, name := range requested {
		if canonical, ok := known[strings.ToLower(strings.TrimSpace(name))]; ok {
			kept = append(kept, canonical)
		}
	}
	return kept
}

func normalizeAnalysisType(s string) model.AnalysisType {
	switch model.AnalysisType(strings.ToLower(strings.TrimSpace(s))) {
	case model.AnalysisCount:
		return model.AnalysisCount
	case model.AnalysisList:
		return model.AnalysisList
	case model.AnalysisAggregate:
		return model.AnalysisAggregate
	case model.AnalysisJoin:
		return model.AnalysisJoin
	default:
		return model.AnalysisComplex
	}
}

func normalizeComplexity(s string) model.Complexity {
	switch model.Complexity(strings.ToLower(strings.TrimSpace(s))) {
	case model.ComplexitySimple:
		return model.ComplexitySimple
	case model.ComplexityMedium:
		return model.ComplexityMedium
	default:
		return model.ComplexityComplex
	}
}
