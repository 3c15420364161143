package prompts

import (
	"context"
	_ "embed"
	"strconv"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

//go:embed template/response_prompt.txt
var responsePromptTemplate string

// RenderResponse builds the presentation prompt for the final user-facing
// message: the analysis, a bounded sample of the raw rows and a hard length
// ceiling.
func RenderResponse(ctx context.Context, botName, question string, report *model.InsightReport, result *model.QueryResult, maxChars int) (string, error) {
	var rows []map[string]any
	if result != nil {
		rows = result.Results
	}

	content := strings.NewReplacer(
		"{BOT_NAME}", botName,
		"{QUESTION}", question,
		"{ANALYSIS}", compactJSON(report),
		"{ROWS}", formatRows(rows),
		"{MAX_CHARS}", strconv.Itoa(maxChars),
	).Replace(responsePromptTemplate)

	return renderStatic(ctx, content)
}
