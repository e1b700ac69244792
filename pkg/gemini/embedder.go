// Package gemini embeds text with the Gemini API.
package gemini

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// modelsAPI is the subset of *genai.Models used here.
type modelsAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimensions truncates embeddings to n dimensions.
func WithDimensions(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			d := int32(n)
			e.dimensions = &d
		}
	}
}

// Embedder calls the Gemini embedContent endpoint.
type Embedder struct {
	models     modelsAPI
	model      string
	dimensions *int32
}

// New creates an Embedder backed by the Gemini API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return newEmbedder(client.Models, opts...), nil
}

func newEmbedder(models modelsAPI, opts ...Option) *Embedder {
	e := &Embedder{models: models, model: DefaultModel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: e.dimensions,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: embed content")
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, eris.New("gemini: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}
