package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/graph/prompts"
	"github.com/dataspeak-agent/server/internal/agent/model"
	errx "github.com/dataspeak-agent/server/internal/core/error"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// DefaultMaxResponseChars is the hard ceiling on the rendered message.
const DefaultMaxResponseChars = 1600

type Presenter struct {
	llm      model.Completer
	botName  string
	maxChars int
}

func NewPresenter(llm model.Completer, botName string, maxChars int) *Presenter {
	if maxChars <= 0 {
		maxChars = DefaultMaxResponseChars
	}
	return &Presenter{llm: llm, botName: botName, maxChars: maxChars}
}

// Render produces the final user-facing message from the analysis and raw
// results. On LLM failure it falls back to a templated message reporting the
// record count or a generic failure notice. Output never exceeds the ceiling.
func (p *Presenter) Render(ctx context.Context, question string, report *model.InsightReport, result *model.QueryResult) string {
	prompt, err := prompts.RenderResponse(ctx, p.botName, question, report, result, p.maxChars)
	if err != nil {
		logx.Error().Err(err).Str("component", "presentation").Msg("prompt render failed")
		return p.templated(report, result)
	}

	raw, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		logx.Error().Err(errx.WrapCompletion(err)).Str("component", "presentation").Msg("completion failed")
		return p.templated(report, result)
	}

	message := strings.TrimSpace(raw)
	if message == "" {
		return p.templated(report, result)
	}
	return truncate(message, p.maxChars)
}

func (p *Presenter) templated(report *model.InsightReport, result *model.QueryResult) string {
	if result == nil || !result.Success {
		return "Não consegui executar essa consulta. Tente reformular a pergunta indicando a tabela desejada."
	}

	var b strings.Builder
	if report != nil && report.Summary != "" {
		b.WriteString(report.Summary)
	} else {
		fmt.Fprintf(&b, "Consulta concluída: *%d* registros retornados.", len(result.Results))
	}
	if report != nil {
		for _, ins := range report.Insights {
			if ins == report.Summary {
				continue
			}
			fmt.Fprintf(&b, "\n- %s", ins)
		}
	}
	return truncate(b.String(), p.maxChars)
}

// truncate cuts at a rune boundary so multi-byte text is never split.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
