package model

import "context"

// Completer is the single-turn LLM collaborator: prompt in, text out.
// Temperature and output budget are fixed per instance; the pipeline keeps a
// low-temperature reasoning completer and a freer response completer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
