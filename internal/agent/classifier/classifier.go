// Package classifier implements the zero-latency fast path: trivial
// conversational input is matched against a fixed, ordered rule set and
// answered from static identity metadata, with no store or LLM calls.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dataspeak-agent/server/internal/agent/model"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// Categories, in declaration order. Rules are tried first to last, first
// match wins, so ties are impossible.
const (
	CategoryCapability = "capability_inquiry"
	CategoryHelp       = "help"
	CategoryGreeting   = "greeting"
	CategoryThanks     = "thanks"
	CategoryStatus     = "status_check"
)

type rule struct {
	category string
	pattern  *regexp.Regexp
}

// Patterns cover Portuguese and English.
var rules = []rule{
	{CategoryCapability, regexp.MustCompile(`(?i)(o que (você|voce|vc) (faz|sabe|pode)|quais (são |sao )?suas (funções|funcoes|funcionalidades)|quem (é|e) (você|voce|vc)|what can you do|what are your capabilities|who are you)`)},
	{CategoryHelp, regexp.MustCompile(`(?i)^\s*(ajuda|socorro|como (uso|usar|funciona)|help|how do i use)\b`)},
	{CategoryGreeting, regexp.MustCompile(`(?i)^\s*(oi+|olá|ola|opa|e a(í|i)|bom dia|boa tarde|boa noite|hello|hi|hey)[\s!.,?]*$`)},
	{CategoryThanks, regexp.MustCompile(`(?i)^\s*(obrigad[oa]s?|valeu|muito obrigad[oa]|thanks|thank you|thx)[\s!.,?]*$`)},
	{CategoryStatus, regexp.MustCompile(`(?i)^\s*(tudo bem|como vai|tá a(í|i)|esta a(í|i)|you there|how are you)[\s!.,?]*$`)},
}

// Classifier renders canned replies for conversational input using the
// configured identity. It never touches a collaborator.
type Classifier struct {
	identity model.IdentityConfig
}

func New(identity model.IdentityConfig) *Classifier {
	return &Classifier{identity: identity}
}

// Classify tests the text against the rule set in fixed priority order.
// Verdict.Matched is false when the full pipeline should run instead.
func (c *Classifier) Classify(text string) *model.ClassifierVerdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &model.ClassifierVerdict{
			Matched:  true,
			Category: CategoryHelp,
			Reply:    c.renderHelp(),
		}
	}

	for _, r := range rules {
		if !r.pattern.MatchString(trimmed) {
			continue
		}
		logx.Debug().
			Str("component", "classifier").
			Str("category", r.category).
			Msg("fast path matched")
		return &model.ClassifierVerdict{
			Matched:  true,
			Category: r.category,
			Reply:    c.render(r.category),
		}
	}

	return &model.ClassifierVerdict{Matched: false}
}

func (c *Classifier) render(category string) string {
	switch category {
	case CategoryCapability:
		return c.renderCapabilities()
	case CategoryHelp:
		return c.renderHelp()
	case CategoryGreeting:
		return fmt.Sprintf(
			"Olá! Eu sou o %s, assistente de dados da %s. Pergunte algo sobre seus dados, por exemplo: %s",
			c.identity.BotName, c.identity.Business, c.exampleQuestion())
	case CategoryThanks:
		return "De nada! Se precisar de mais alguma análise, é só perguntar."
	case CategoryStatus:
		return fmt.Sprintf("Tudo certo por aqui! O %s está pronto para consultar seus dados.", c.identity.BotName)
	default:
		return c.renderHelp()
	}
}

func (c *Classifier) renderCapabilities() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eu sou o %s e respondo perguntas sobre os dados da %s.\n", c.identity.BotName, c.identity.Business)
	b.WriteString("Posso: contar registros, listar dados, calcular agregações e cruzar tabelas.\n")
	if len(c.identity.KnownTables) > 0 {
		fmt.Fprintf(&b, "Tabelas que conheço: %s.\n", strings.Join(c.identity.KnownTables, ", "))
	}
	fmt.Fprintf(&b, "Exemplo: %s", c.exampleQuestion())
	return b.String()
}

func (c *Classifier) renderHelp() string {
	return fmt.Sprintf(
		"Me faça uma pergunta sobre seus dados em linguagem natural. Exemplos:\n"+
			"- %s\n"+
			"- \"liste os leads com email preenchido\"\n"+
			"- \"qual a média de mensagens por conversa?\"",
		c.exampleQuestion())
}

func (c *Classifier) exampleQuestion() string {
	table := "qualified_leads"
	if len(c.identity.KnownTables) > 0 {
		table = c.identity.KnownTables[0]
	}
	return fmt.Sprintf("\"quantos registros tem a tabela %s?\"", table)
}
