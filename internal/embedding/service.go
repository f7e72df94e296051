package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/menuwaiter/internal/llm"
)

// maxRequestSize caps the number of inputs sent in a single provider call.
const maxRequestSize = 100

// ErrEmptyEmbedding is returned when the provider answers with fewer vectors
// than inputs or with an empty vector.
var ErrEmptyEmbedding = errors.New("provider returned no embedding")

// Client is the subset of llm.Gateway the service needs.
type Client interface {
	Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error)
}

// Service maps ordered text batches to ordered vectors. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	client   Client
	provider string
	model    string
}

func NewService(client Client, provider, model string) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Service{client: client, provider: provider, model: model}
}

func (s *Service) Model() string { return s.model }

// Embed returns exactly one vector per input text, in input order.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxRequestSize {
		end := min(i+maxRequestSize, len(texts))
		batch := texts[i:end]

		resp, err := s.client.Embed(ctx, llm.EmbeddingRequest{
			Provider: s.provider,
			Model:    s.model,
			Input:    batch,
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/maxRequestSize, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embed batch %d: got %d vectors for %d inputs: %w",
				i/maxRequestSize, len(resp.Embeddings), len(batch), ErrEmptyEmbedding)
		}
		for j, v := range resp.Embeddings {
			if len(v) == 0 {
				return nil, fmt.Errorf("embed input %d: %w", i+j, ErrEmptyEmbedding)
			}
		}

		all = append(all, resp.Embeddings...)
	}

	return all, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
