package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// maxTracedChars keeps traced prompt/response excerpts readable.
const maxTracedChars = 400

// newModelHandler builds a typed ModelCallbackHandler to trace model calls.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			event := logx.Debug().
				Str("component", info.Type).
				Str("node", info.Name)
			if input != nil && len(input.Messages) > 0 {
				if last := input.Messages[len(input.Messages)-1]; last != nil {
					event = event.Str("prompt_excerpt", excerpt(last.Content))
				}
			}
			event.Msg("model call started")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			event := logx.Debug().
				Str("component", info.Type).
				Str("node", info.Name)
			if output != nil && output.Message != nil {
				event = event.Str("response_excerpt", excerpt(output.Message.Content))
			}
			event.Msg("model call finished")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().
				Err(err).
				Str("component", info.Type).
				Str("node", info.Name).
				Msg("model call failed")
			return ctx
		},
	}
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxTracedChars {
		return s
	}
	return string(runes[:maxTracedChars]) + "..."
}
