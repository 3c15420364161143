package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

//go:embed template/analysis_prompt.txt
var analysisPromptTemplate string

// RenderAnalysis builds the insight-extraction prompt. When the constrained
// translator had to drop expressions, the narrowing is stated explicitly so
// the model does not present a partial result as complete.
func RenderAnalysis(ctx context.Context, intent *model.Intent, result *model.QueryResult) (string, error) {
	narrowed := ""
	if result != nil && len(result.Narrowed) > 0 {
		narrowed = fmt.Sprintf(
			"ATENÇÃO: a consulta foi simplificada, as expressões a seguir foram descartadas: %s. Diga que o resultado é parcial.",
			strings.Join(result.Narrowed, "; "))
	}

	var rows []map[string]any
	if result != nil {
		rows = result.Results
	}

	content := strings.NewReplacer(
		"{INTENT}", compactJSON(intent),
		"{NARROWED}", narrowed,
		"{ROWS}", formatRows(rows),
	).Replace(analysisPromptTemplate)

	return renderStatic(ctx, content)
}
