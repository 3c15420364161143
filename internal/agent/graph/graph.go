// Package graph composes the question answering pipeline as an eino graph:
// fast-path classification, intent resolution, query translation, analysis
// and presentation, with conditional routing between them.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/dataspeak-agent/server/internal/agent/analysis"
	"github.com/dataspeak-agent/server/internal/agent/catalog"
	"github.com/dataspeak-agent/server/internal/agent/classifier"
	"github.com/dataspeak-agent/server/internal/agent/graph/conversations"
	"github.com/dataspeak-agent/server/internal/agent/graph/nodes"
	"github.com/dataspeak-agent/server/internal/agent/graph/observers"
	"github.com/dataspeak-agent/server/internal/agent/intent"
	"github.com/dataspeak-agent/server/internal/agent/model"
	"github.com/dataspeak-agent/server/internal/agent/query"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// apologyMessage is the only thing the caller sees when the pipeline itself
// fails in a way no stage-level fallback absorbed.
const apologyMessage = "Desculpe, tive um problema ao processar sua pergunta. Tente novamente em instantes."

// Runner executes the compiled pipeline for one request. Process never
// returns an error: every failure mode degrades into a response.
type Runner interface {
	Process(ctx context.Context, in model.QueryInput) *model.PipelineResponse
}

// Config holds everything needed to compose the full pipeline end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat
// models.
type Config struct {
	APIKey         string
	BaseURL        string
	ReasoningModel model.ReasoningModelConfig
	ResponseModel  model.ResponseModelConfig
	Pipeline       model.PipelineConfig
	Identity       model.IdentityConfig
	Store          model.DataStore
	ContextRepo    model.ContextRepository
}

// GraphConfig holds the injected collaborators the graph is built from.
type GraphConfig struct {
	ReasoningLLM model.Completer
	ResponseLLM  model.Completer
	Store        model.DataStore
	ContextRepo  model.ContextRepository
	Pipeline     model.PipelineConfig
	Identity     model.IdentityConfig
}

// GraphBuilder handles the construction of the pipeline graph
type GraphBuilder struct {
	classifier  *classifier.Classifier
	coordinator *intent.Coordinator
	translator  *query.Translator
	analyzer    *analysis.Analyzer
	presenter   *analysis.Presenter
	graph       *compose.Graph[model.QueryInput, *model.PipelineResponse]
}

type pipelineRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.PipelineResponse]
}

// NewRunner wraps a compiled pipeline graph with top-level recovery.
func NewRunner(runnable compose.Runnable[model.QueryInput, *model.PipelineResponse]) Runner {
	return &pipelineRunner{runnable: runnable}
}

func (r *pipelineRunner) Process(ctx context.Context, in model.QueryInput) (resp *model.PipelineResponse) {
	defer func() {
		if rec := recover(); rec != nil {
			logx.Error().
				Interface("panic", rec).
				Str("conversation_id", in.ConversationID).
				Msg("pipeline panicked")
			resp = apologyResponse(fmt.Sprintf("%v", rec))
		}
	}()

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().
			Err(err).
			Str("conversation_id", in.ConversationID).
			Msg("pipeline invocation failed")
		return apologyResponse(err.Error())
	}
	if out == nil {
		return apologyResponse("pipeline produced no response")
	}
	return out
}

func apologyResponse(failure string) *model.PipelineResponse {
	return &model.PipelineResponse{
		Success:  false,
		Response: apologyMessage,
		Error:    failure,
	}
}

// BuildPipeline composes the chat models, builds the graph and returns a
// Runner.
func BuildPipeline(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("data store is nil")
	}
	if cfg.ContextRepo == nil {
		return nil, fmt.Errorf("context repo is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Reasoning: &cfg.ReasoningModel,
		Response:  &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ReasoningLLM: nodes.NewCompleter(cms.Reasoning, cms.ReasoningModelName),
		ResponseLLM:  nodes.NewCompleter(cms.Response, cms.ResponseModelName),
		Store:        cfg.Store,
		ContextRepo:  cfg.ContextRepo,
		Pipeline:     cfg.Pipeline,
		Identity:     cfg.Identity,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Pipeline graph built successfully")
	return &pipelineRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled pipeline graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.PipelineResponse], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ReasoningLLM == nil || config.ResponseLLM == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("data store is nil")
	}
	if config.ContextRepo == nil {
		return nil, fmt.Errorf("context repo is nil")
	}

	cache := catalog.New(config.Store,
		catalog.WithCatalogTTL(parseTTL(config.Pipeline.CatalogTTL, catalog.DefaultTTL)),
		catalog.WithSchemaTTL(parseTTL(config.Pipeline.SchemaTTL, catalog.DefaultTTL)),
	)
	tracker := conversations.NewTracker(config.ContextRepo)

	builder := &GraphBuilder{
		classifier:  classifier.New(config.Identity),
		coordinator: intent.NewCoordinator(config.ReasoningLLM, cache, tracker),
		translator: query.NewTranslator(config.ReasoningLLM, config.Store, cache,
			query.WithRowLimit(config.Pipeline.DefaultRowLimit),
			query.WithDistinctPageSize(config.Pipeline.DistinctPageSize),
		),
		analyzer:  analysis.NewAnalyzer(config.ReasoningLLM),
		presenter: analysis.NewPresenter(config.ResponseLLM, config.Identity.BotName, config.Pipeline.MaxResponseChars),
		graph: compose.NewGraph[model.QueryInput, *model.PipelineResponse](
			compose.WithGenLocalState(func(ctx context.Context) *model.PipelineState {
				return &model.PipelineState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeClassifier,
		nodes.NewClassifierNode(b.classifier),
		compose.WithStatePreHandler(nodes.NewClassifierPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeFastResponder,
		nodes.NewFastResponderNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeIntentResolver,
		nodes.NewIntentResolverNode(b.coordinator),
	)

	b.graph.AddLambdaNode(nodes.NodeMetadataResponder,
		nodes.NewMetadataResponderNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeQueryTranslator,
		nodes.NewQueryTranslatorNode(b.translator),
	)

	b.graph.AddLambdaNode(nodes.NodeAnalyzer,
		nodes.NewAnalyzerNode(b.analyzer),
	)

	b.graph.AddLambdaNode(nodes.NodePresenter,
		nodes.NewPresenterNode(b.presenter),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifier},
		{nodes.NodeFastResponder, compose.END},
		{nodes.NodeMetadataResponder, compose.END},
		{nodes.NodeQueryTranslator, nodes.NodeAnalyzer},
		{nodes.NodeAnalyzer, nodes.NodePresenter},
		{nodes.NodePresenter, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	fastPathBranch := compose.NewGraphBranch(
		nodes.NewFastPathCondition(),
		map[string]bool{
			nodes.NodeFastResponder:  true,
			nodes.NodeIntentResolver: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassifier, fastPathBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding fast path branch")
		return fmt.Errorf("error adding fast path branch: %w", err)
	}

	metadataBranch := compose.NewGraphBranch(
		nodes.NewMetadataCondition(),
		map[string]bool{
			nodes.NodeMetadataResponder: true,
			nodes.NodeQueryTranslator:   true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIntentResolver, metadataBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding metadata branch")
		return fmt.Errorf("error adding metadata branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.PipelineResponse], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// parseTTL reads a duration string from config, falling back when unset or
// malformed.
func parseTTL(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		logx.Warn().Str("value", s).Msg("invalid ttl in config, using default")
		return fallback
	}
	return d
}
