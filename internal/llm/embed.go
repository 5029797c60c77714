package llm

import (
	"context"
	"fmt"
)

// EmbedOne embeds a single text and checks that exactly one non-empty
// vector came back.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	if p == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, Malformed(p.Name(), fmt.Errorf("expected one embedding, got %d", len(vecs)))
	}
	return vecs[0], nil
}

// Embedder adapts p to the single-text embed function used by the index
// and history stores.
func Embedder(p Provider) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return EmbedOne(ctx, p, text)
	}
}
