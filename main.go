package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dataspeak-agent/server/internal/agent/graph"
	"github.com/dataspeak-agent/server/internal/agent/model"
	"github.com/dataspeak-agent/server/internal/agent/repo"
	"github.com/dataspeak-agent/server/internal/agent/store"
	"github.com/dataspeak-agent/server/internal/core"
	logx "github.com/dataspeak-agent/server/pkg/logger"
	pkgpostgres "github.com/dataspeak-agent/server/pkg/postgres"
	pkgredis "github.com/dataspeak-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the pipeline example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Postgres pkgpostgres.Config
	Redis    pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Reasoning model.ReasoningModelConfig
	Response  model.ResponseModelConfig
	Pipeline  model.PipelineConfig
	Identity  model.IdentityConfig
}

func main() {
	fmt.Println("Starting analytics pipeline demo...")
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("ENVIRONMENT"))})

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	db, err := envCfg.Postgres.New()
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Postgres and Redis successfully")

	contextTTL, err := time.ParseDuration(envCfg.Pipeline.ContextTTL)
	if err != nil {
		log.Fatalf("Invalid CONTEXT_TTL '%s': %v", envCfg.Pipeline.ContextTTL, err)
	}

	cfg := graph.Config{
		APIKey:         envCfg.APIKey,
		BaseURL:        envCfg.BaseURL,
		ReasoningModel: envCfg.Reasoning,
		ResponseModel:  envCfg.Response,
		Pipeline:       envCfg.Pipeline,
		Identity:       envCfg.Identity,
		Store:          store.NewPostgres(db),
		ContextRepo:    repo.NewRedisContextRepository(rdb, contextTTL),
	}

	runner, err := graph.BuildPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Small talk hits the fast path",
			query:       "oi",
		},
		{
			description: "Simple count over the lead table",
			query:       "quantos leads qualificados temos?",
		},
		{
			description: "Filtered lookup by email",
			query:       "quais conversas do email ana@exemplo.com?",
		},
		{
			description: "Back-reference to the previous email",
			query:       "e quantas mensagens do mesmo email?",
		},
	}

	conversationID := "demo-conversation-001"

	for i, test := range testQueries {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Query: %q\n", test.query)
		fmt.Println("Processing...")

		response := runner.Process(ctx, model.QueryInput{
			ConversationID: conversationID,
			Query:          test.query,
		})

		fmt.Printf("Response %d (success=%v, fast_path=%v):\n%s\n",
			i+1, response.Success, response.FastPath, response.Response)
		fmt.Println("------------------------------------------------")

		// slight delay between tests for readability
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("All pipeline tests completed.")
}
