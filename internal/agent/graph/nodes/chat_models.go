package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/dataspeak-agent/server/internal/agent/model"
	errx "github.com/dataspeak-agent/server/internal/core/error"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	Reasoning *model.ReasoningModelConfig
	Response  *model.ResponseModelConfig
}

// ChatModels holds both reasoning and response chat models
type ChatModels struct {
	Reasoning          *gemini.ChatModel
	Response           *gemini.ChatModel
	ReasoningModelName string
	ResponseModelName  string
}

// NewChatModels creates both reasoning and response chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelReasoning, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Reasoning.Model,
		Temperature: &config.Reasoning.Temperature,
		MaxTokens:   &config.Reasoning.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reasoning model")
		return nil, fmt.Errorf("error creating reasoning model: %w", err)
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Reasoning:          chatModelReasoning,
		Response:           chatModelResponse,
		ReasoningModelName: config.Reasoning.Model,
		ResponseModelName:  config.Response.Model,
	}, nil
}

// chatGenerator is the single method of the underlying chat model the
// completer needs. *gemini.ChatModel satisfies it.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

type geminiCompleter struct {
	cm        chatGenerator
	modelName string
}

// NewCompleter adapts a chat model into the single-turn prompt collaborator
// the pipeline stages consume. Usage cost is logged per call and accumulated
// into graph state when one is present.
func NewCompleter(cm chatGenerator, modelName string) model.Completer {
	return &geminiCompleter{cm: cm, modelName: modelName}
}

func (c *geminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", errx.WrapCompletion(err)
	}

	if model.CostEnabled() && out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		pricing := model.ResolvePricing(c.modelName)
		inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
		logx.Debug().
			Str("model", c.modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")

		// Accumulate only total cost into state. ProcessState fails outside a
		// graph run; completions still work there, just without accounting.
		_ = compose.ProcessState[*model.PipelineState](ctx, func(ctx context.Context, s *model.PipelineState) error {
			s.TotalCostUSD += totalC
			return nil
		})
	}

	return out.Content, nil
}
