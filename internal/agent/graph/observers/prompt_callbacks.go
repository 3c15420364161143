package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// newPromptHandler traces prompt template rendering.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *prompt.CallbackInput) context.Context {
			event := logx.Debug().
				Str("component", info.Type).
				Str("node", info.Name)
			if input != nil {
				event = event.Int("variables", len(input.Variables))
			}
			event.Msg("prompt render started")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			event := logx.Debug().
				Str("component", info.Type).
				Str("node", info.Name)
			if output != nil {
				event = event.Int("messages", len(output.Result))
			}
			event.Msg("prompt render finished")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().
				Err(err).
				Str("component", info.Type).
				Str("node", info.Name).
				Msg("prompt render failed")
			return ctx
		},
	}
}
