package prompts

import (
	"context"
	_ "embed"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

//go:embed template/intent_prompt.txt
var intentPromptTemplate string

// RenderIntent builds the intent-classification prompt: discovered tables,
// rolling conversation context, extracted references and the synonym table,
// with formatting instructions demanding a single JSON object.
func RenderIntent(ctx context.Context, tables []model.TableInfo, cc *model.ConversationContext, refs model.References, question string) (string, error) {
	content := strings.NewReplacer(
		"{TABLES}", formatCatalog(tables),
		"{CONTEXT}", formatContext(cc),
		"{REFERENCES}", formatReferences(refs),
		"{QUESTION}", question,
	).Replace(intentPromptTemplate)

	return renderStatic(ctx, content)
}
