// File path: cmd/nexad/summarizer.go
package main

import (
	"context"

	"github.com/nexa-ai/nexa/internal/llm"
)

// chatSummarizer adapts the chat provider to single-turn completions for
// table evidence condensation.
type chatSummarizer struct {
	provider llm.Provider
}

func (c chatSummarizer) Complete(ctx context.Context, prompt string) (string, error) {
	return c.provider.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}
