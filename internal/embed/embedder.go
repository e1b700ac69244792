// Package embed defines the text embedding capability used for semantic
// mission similarity, its providers, and the guard that bounds every call.
package embed

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/pkg/jina"
)

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a function to the Embedder interface.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Jina adapts a batch jina.Client to a single-text Embedder.
type Jina struct {
	Client jina.Client
}

// Embed returns the embedding of text.
func (j Jina) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := j.Client.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("embed: jina returned %d vectors", len(vecs))
	}
	return vecs[0], nil
}
