package intent

import (
	"regexp"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/model"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	sameEmailRe = regexp.MustCompile(`(?i)(mesmo e-?mail|same e-?mail)`)
	sameTableRe = regexp.MustCompile(`(?i)(mesma tabela|nessa tabela|nesta tabela|same table|that table)`)

	countVerbRe  = regexp.MustCompile(`(?i)\b(quant[oa]s?|contar?|contagem|total de|count|how many)\b`)
	listVerbRe   = regexp.MustCompile(`(?i)\b(listar?|liste|mostrar?|mostre|exibir?|list|show)\b`)
	searchVerbRe = regexp.MustCompile(`(?i)\b(buscar?|busque|procurar?|procure|encontrar?|encontre|search|find)\b`)
)

// ExtractReferences pulls contextual signals out of the raw text: an email
// token, a known table-name substring, back-reference flags and coarse verb
// intent. Purely local, no collaborator calls.
func ExtractReferences(text string, tables []model.TableInfo) model.References {
	lower := strings.ToLower(text)

	refs := model.References{
		Email:       emailRe.FindString(text),
		SameEmail:   sameEmailRe.MatchString(text),
		SameTable:   sameTableRe.MatchString(text),
		WantsCount:  countVerbRe.MatchString(text),
		WantsList:   listVerbRe.MatchString(text),
		WantsSearch: searchVerbRe.MatchString(text),
	}

	// longest table name wins so "qualified_leads" beats "leads"
	for _, t := range tables {
		name := strings.ToLower(t.Name)
		if name == "" || !strings.Contains(lower, name) {
			continue
		}
		if len(t.Name) > len(refs.Table) {
			refs.Table = t.Name
		}
	}

	return refs
}
