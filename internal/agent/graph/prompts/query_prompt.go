package prompts

import (
	"context"
	_ "embed"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

//go:embed template/query_prompt.txt
var queryPromptTemplate string

// RenderQuery builds the SQL drafting prompt from the resolved schemas, the
// conversation context (back-referenced email or table included) and the
// structured intent.
func RenderQuery(ctx context.Context, schemas []model.TableSchema, cc *model.ConversationContext, intent *model.Intent) (string, error) {
	content := strings.NewReplacer(
		"{SCHEMAS}", formatSchemas(schemas),
		"{CONTEXT}", formatContext(cc),
		"{INTENT}", compactJSON(intent),
	).Replace(queryPromptTemplate)

	return renderStatic(ctx, content)
}
