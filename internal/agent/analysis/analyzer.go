// Package analysis turns raw result rows into a bounded insight report and a
// user-facing message. Both stages carry their own LLM-failure fallback, so
// the pipeline always has something to say.
package analysis

import (
	"context"
	"fmt"

	"github.com/dataspeak-agent/server/internal/agent/graph/parsers"
	"github.com/dataspeak-agent/server/internal/agent/graph/prompts"
	"github.com/dataspeak-agent/server/internal/agent/model"
	errx "github.com/dataspeak-agent/server/internal/core/error"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

const (
	maxInsights        = 3
	maxRecommendations = 2
)

type Analyzer struct {
	llm model.Completer
}

func NewAnalyzer(llm model.Completer) *Analyzer {
	return &Analyzer{llm: llm}
}

// Analyze produces at most maxInsights insights and maxRecommendations
// recommendations derived from the returned rows. A failed query yields an
// explicit no-insights report without any LLM call: the stage must never
// fabricate data for rows that do not exist.
func (a *Analyzer) Analyze(ctx context.Context, intent *model.Intent, result *model.QueryResult) *model.InsightReport {
	if result == nil || !result.Success {
		reason := "a consulta não pôde ser executada"
		if result != nil && result.Error != "" {
			reason = result.Error
		}
		return &model.InsightReport{
			Insights:        []string{},
			Recommendations: []string{"Reformule a pergunta com a tabela e o filtro desejados."},
			Summary:         fmt.Sprintf("Nenhum insight disponível: %s.", reason),
		}
	}

	fallback := fallbackReport(result)

	prompt, err := prompts.RenderAnalysis(ctx, intent, result)
	if err != nil {
		logx.Error().Err(err).Str("component", "analysis").Msg("prompt render failed")
		return fallback
	}

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		logx.Error().Err(errx.WrapCompletion(err)).Str("component", "analysis").Msg("completion failed")
		return fallback
	}

	report, recovered := parsers.Decode(raw, *fallback)
	if !recovered {
		return fallback
	}

	if len(report.Insights) > maxInsights {
		report.Insights = report.Insights[:maxInsights]
	}
	if len(report.Recommendations) > maxRecommendations {
		report.Recommendations = report.Recommendations[:maxRecommendations]
	}
	return &report
}

// fallbackReport reads a single total-records insight straight from the
// result payload.
func fallbackReport(result *model.QueryResult) *model.InsightReport {
	total := fmt.Sprintf("A consulta retornou %d registros.", len(result.Results))
	if len(result.Results) == 1 {
		if n, ok := result.Results[0]["count"]; ok {
			total = fmt.Sprintf("Total de registros: %v.", n)
		}
	}
	return &model.InsightReport{
		Insights:        []string{total},
		Recommendations: []string{},
		Summary:         total,
	}
}
