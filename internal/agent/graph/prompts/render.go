package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

const (
	maxColumnsShown = 12
	maxRowsShown    = 20
	maxRowChars     = 4 * 1024
)

// renderStatic pushes a fully substituted prompt through the Eino prompt
// component. Token substitution happens before this call, so JSON braces in
// the templates never collide with the template engine.
func renderStatic(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

// formatCatalog renders discovered tables with truncated column lists.
func formatCatalog(tables []model.TableInfo) string {
	if len(tables) == 0 {
		return "(nenhuma tabela descoberta)"
	}
	var b strings.Builder
	for _, t := range tables {
		cols := t.Columns
		suffix := ""
		if len(cols) > maxColumnsShown {
			cols = cols[:maxColumnsShown]
			suffix = ", …"
		}
		fmt.Fprintf(&b, "- %s (%d linhas): %s%s\n", t.Name, t.RowCount, strings.Join(cols, ", "), suffix)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatSchemas renders resolved schemas including sample rows.
func formatSchemas(schemas []model.TableSchema) string {
	if len(schemas) == 0 {
		return "(nenhum esquema disponível)"
	}
	var b strings.Builder
	for _, s := range schemas {
		fmt.Fprintf(&b, "Tabela %s (%d linhas)\n", s.Name, s.RowCount)
		fmt.Fprintf(&b, "  colunas: %s\n", strings.Join(s.Columns, ", "))
		for _, row := range s.SampleRows {
			fmt.Fprintf(&b, "  exemplo: %s\n", compactJSON(row))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatContext renders the rolling conversation context, newest first.
func formatContext(cc *model.ConversationContext) string {
	if cc == nil || (len(cc.History) == 0 && cc.LastEmail == "" && cc.LastTable == "") {
		return "(sem contexto anterior)"
	}
	var b strings.Builder
	if cc.LastEmail != "" {
		fmt.Fprintf(&b, "último email citado: %s\n", cc.LastEmail)
	}
	if cc.LastTable != "" {
		fmt.Fprintf(&b, "última tabela consultada: %s\n", cc.LastTable)
	}
	if cc.LastOperation != "" {
		fmt.Fprintf(&b, "última operação: %s\n", cc.LastOperation)
	}
	for _, rec := range cc.History {
		fmt.Fprintf(&b, "UserMessage(%s)\n", rec.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatReferences(refs model.References) string {
	var parts []string
	if refs.Email != "" {
		parts = append(parts, fmt.Sprintf("email citado: %s", refs.Email))
	}
	if refs.Table != "" {
		parts = append(parts, fmt.Sprintf("tabela citada: %s", refs.Table))
	}
	if refs.SameEmail {
		parts = append(parts, "o usuário se refere ao MESMO email de antes")
	}
	if refs.SameTable {
		parts = append(parts, "o usuário se refere à MESMA tabela de antes")
	}
	switch {
	case refs.WantsCount:
		parts = append(parts, "verbo sugere contagem")
	case refs.WantsSearch:
		parts = append(parts, "verbo sugere busca")
	case refs.WantsList:
		parts = append(parts, "verbo sugere listagem")
	}
	if len(parts) == 0 {
		return "(nenhuma referência extraída)"
	}
	return "- " + strings.Join(parts, "\n- ")
}

// formatRows serializes result rows with hard caps so analysis prompts stay
// bounded regardless of what the store returned.
func formatRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "(nenhuma linha retornada)"
	}
	shown := rows
	truncated := false
	if len(shown) > maxRowsShown {
		shown = shown[:maxRowsShown]
		truncated = true
	}
	var b strings.Builder
	for _, row := range shown {
		line := compactJSON(row)
		if len(line) > maxRowChars {
			line = line[:maxRowChars] + "…"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if truncated {
		fmt.Fprintf(&b, "(… %d linhas omitidas)", len(rows)-maxRowsShown)
	}
	return strings.TrimRight(b.String(), "\n")
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
