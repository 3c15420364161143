package model

// ================ Config ================

// ReasoningModelConfig drives the low-temperature model used for intent
// classification, SQL drafting and analysis.
type ReasoningModelConfig struct {
	Model       string  `envconfig:"REASONING_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"REASONING_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"REASONING_TEMPERATURE" default:"0.1"`
}

// ResponseModelConfig drives the higher-temperature model used to phrase the
// final user-facing message.
type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"1500"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`
}

// PipelineConfig groups the tunables of the orchestration pipeline itself.
type PipelineConfig struct {
	CatalogTTL       string `envconfig:"CATALOG_TTL" default:"5m"`
	SchemaTTL        string `envconfig:"SCHEMA_TTL" default:"5m"`
	ContextTTL       string `envconfig:"CONTEXT_TTL" default:"30m"`
	DefaultRowLimit  int    `envconfig:"QUERY_DEFAULT_ROW_LIMIT" default:"100"`
	DistinctPageSize int    `envconfig:"QUERY_DISTINCT_PAGE_SIZE" default:"1000"`
	MaxResponseChars int    `envconfig:"RESPONSE_MAX_CHARS" default:"1600"`
}

// IdentityConfig is the static identity metadata rendered by the fast path.
// The fast path makes no store calls, so the known tables are configured, not
// discovered.
type IdentityConfig struct {
	BotName     string   `envconfig:"BOT_NAME" default:"DataSpeak"`
	Business    string   `envconfig:"BOT_BUSINESS_NAME" default:"LeadFlow CRM"`
	KnownTables []string `envconfig:"BOT_KNOWN_TABLES" default:"qualified_leads,conversas,mensagens"`
}
