package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/dataspeak-agent/server/internal/agent/analysis"
	"github.com/dataspeak-agent/server/internal/agent/classifier"
	"github.com/dataspeak-agent/server/internal/agent/intent"
	"github.com/dataspeak-agent/server/internal/agent/model"
	"github.com/dataspeak-agent/server/internal/agent/query"
	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// Node names used when wiring the pipeline graph.
const (
	NodeClassifier        = "TextClassifier"
	NodeFastResponder     = "FastResponder"
	NodeIntentResolver    = "IntentResolver"
	NodeMetadataResponder = "MetadataResponder"
	NodeQueryTranslator   = "QueryTranslator"
	NodeAnalyzer          = "Analyzer"
	NodePresenter         = "Presenter"
)

// NewClassifierPreHandler seeds the per-request state before anything runs.
func NewClassifierPreHandler() func(context.Context, model.QueryInput, *model.PipelineState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.PipelineState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Query = in.Query
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewClassifierNode creates the fast-path text classification node. It runs
// on the raw input only and never touches a collaborator.
func NewClassifierNode(c *classifier.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (*model.ClassifierVerdict, error) {
		verdict := c.Classify(in.Query)
		if verdict.Matched {
			logx.Debug().
				Str("conversation_id", in.ConversationID).
				Str("category", verdict.Category).
				Msg("fast path matched")
		}
		return verdict, nil
	})
}

// NewFastPathCondition routes matched small talk to the canned responder and
// everything else into the analytical pipeline.
func NewFastPathCondition() func(context.Context, *model.ClassifierVerdict) (string, error) {
	return func(ctx context.Context, verdict *model.ClassifierVerdict) (string, error) {
		if verdict.Matched {
			return NodeFastResponder, nil
		}
		return NodeIntentResolver, nil
	}
}

// NewFastResponderNode wraps the canned classifier reply into a response.
func NewFastResponderNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, verdict *model.ClassifierVerdict) (*model.PipelineResponse, error) {
		return &model.PipelineResponse{
			Success:  true,
			Response: verdict.Reply,
			FastPath: true,
		}, nil
	})
}

// NewIntentResolverNode classifies the question against the live catalog and
// conversation context. The resolved catalog and updated context are stashed
// in state for the downstream stages.
func NewIntentResolverNode(coordinator *intent.Coordinator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *model.ClassifierVerdict) (*model.Intent, error) {
		var conversationID, question string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			conversationID = s.ConversationID
			question = s.Query
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		resolution := coordinator.Resolve(ctx, conversationID, question)

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Intent = resolution.Intent
			s.Context = resolution.Context
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return resolution.Intent, nil
	})
}

// NewMetadataCondition short-circuits questions answerable from catalog
// metadata alone, skipping query execution entirely.
func NewMetadataCondition() func(context.Context, *model.Intent) (string, error) {
	return func(ctx context.Context, in *model.Intent) (string, error) {
		if in.MetadataOnly() {
			return NodeMetadataResponder, nil
		}
		return NodeQueryTranslator, nil
	}
}

// NewMetadataResponderNode answers directly from the resolved intent.
func NewMetadataResponderNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.Intent) (*model.PipelineResponse, error) {
		resp := &model.PipelineResponse{
			Success:  true,
			Response: in.DirectAnswer,
			Intent:   in,
		}
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			resp.Context = s.Context
			return nil
		})
		return resp, nil
	})
}

// NewQueryTranslatorNode drafts and executes the query for the intent.
func NewQueryTranslatorNode(translator *query.Translator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.Intent) (*model.QueryResult, error) {
		var cc *model.ConversationContext
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			cc = s.Context
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		outcome := translator.Run(ctx, in, cc)

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Schemas = outcome.Schemas
			s.Strategy = outcome.Strategy
			s.QueryResult = outcome.Result
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return outcome.Result, nil
	})
}

// NewAnalyzerNode derives the bounded insight report from the result rows.
func NewAnalyzerNode(analyzer *analysis.Analyzer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, result *model.QueryResult) (*model.InsightReport, error) {
		var in *model.Intent
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			in = s.Intent
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		report := analyzer.Analyze(ctx, in, result)

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Analysis = report
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return report, nil
	})
}

// NewPresenterNode phrases the final message and assembles the full response
// from everything accumulated in state.
func NewPresenterNode(presenter *analysis.Presenter) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, report *model.InsightReport) (*model.PipelineResponse, error) {
		var s model.PipelineState
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.PipelineState) error {
			s = *state
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		message := presenter.Render(ctx, s.Query, report, s.QueryResult)

		resp := &model.PipelineResponse{
			Success:     true,
			Response:    message,
			Intent:      s.Intent,
			Schemas:     s.Schemas,
			QueryResult: s.QueryResult,
			Analysis:    report,
			Context:     s.Context,
		}
		if s.QueryResult != nil && !s.QueryResult.Success {
			resp.Error = s.QueryResult.Error
		}

		logx.Debug().
			Str("conversation_id", s.ConversationID).
			Float64("total_cost_usd", s.TotalCostUSD).
			Msg("pipeline completed")
		return resp, nil
	})
}
