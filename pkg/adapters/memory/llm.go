package memory

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
)

// Embedder is a deterministic in-memory ports.Embedder. It folds token
// hashes into a fixed-size bag-of-words vector, so texts sharing tokens get
// high cosine similarity. Good enough to exercise the semantic tier without
// a network dependency.
type Embedder struct {
	dim   int
	calls atomic.Int64
	err   error
	mu    sync.Mutex
}

// NewEmbedder creates a deterministic embedder with a small fixed dimension.
func NewEmbedder() *Embedder {
	return &Embedder{dim: 64}
}

// Fail makes subsequent Embed calls return err (tests the timeout/miss path).
func (e *Embedder) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many embeddings were requested.
func (e *Embedder) Calls() int64 {
	return e.calls.Load()
}

// Embed returns the bag-of-words vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)

	e.mu.Lock()
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}
	return vec, nil
}

// Completer is a scripted in-memory ports.Completer. Replies are consumed in
// order; when the script runs out it returns the fallback text.
type Completer struct {
	mu       sync.Mutex
	script   []string
	fallback string
	err      error
	calls    atomic.Int64
}

// NewCompleter creates a scripted completer.
func NewCompleter(fallback string, script ...string) *Completer {
	return &Completer{script: script, fallback: fallback}
}

// Fail makes subsequent Complete calls return err.
func (c *Completer) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns how many completions were requested.
func (c *Completer) Calls() int64 {
	return c.calls.Load()
}

// Complete returns the next scripted reply.
func (c *Completer) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	c.calls.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if len(c.script) > 0 {
		next := c.script[0]
		c.script = c.script[1:]
		return next, nil
	}
	return c.fallback, nil
}
