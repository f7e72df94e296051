package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/menuwaiter/internal/llm"
)

type recordingClient struct {
	requests []llm.EmbeddingRequest
	drop     bool
	err      error
}

func (c *recordingClient) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(req.Input))
	for i, text := range req.Input {
		out[i] = []float32{float32(len(text))}
	}
	if c.drop {
		out = out[:len(out)-1]
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func TestEmbedPreservesOrderAcrossRequests(t *testing.T) {
	client := &recordingClient{}
	svc := NewService(client, "openai", "")

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = string(make([]byte, i))
	}

	vecs, err := svc.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 250)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}

	require.Len(t, client.requests, 3)
	assert.Len(t, client.requests[2].Input, 50)
	assert.Equal(t, "openai", client.requests[0].Provider)
	assert.Equal(t, "text-embedding-3-small", client.requests[0].Model)
}

func TestEmbedCountMismatch(t *testing.T) {
	svc := NewService(&recordingClient{drop: true}, "", "m")

	_, err := svc.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestEmbedProviderError(t *testing.T) {
	boom := errors.New("rate limited")
	svc := NewService(&recordingClient{err: boom}, "", "m")

	_, err := svc.EmbedSingle(context.Background(), "dumplings")
	assert.ErrorIs(t, err, boom)
}

func TestEmbedEmptyInput(t *testing.T) {
	client := &recordingClient{}
	vecs, err := NewService(client, "", "").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Empty(t, client.requests)
}
