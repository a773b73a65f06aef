package ports

import "context"

// Embedder turns text into a vector for semantic similarity comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer produces a free-form model reply for the assisted tier.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}
