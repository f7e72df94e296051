package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/menuwaiter/internal/vectorstore"
)

const (
	DefaultTopK = 10

	// NoMatchesContext is the grounding context when the namespace has no matches.
	NoMatchesContext = "No menu items found matching your query."
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a message and formats the nearest menu documents into a
// grounding context. It never filters by category.
type Retriever struct {
	embedder QueryEmbedder
	index    vectorstore.VectorIndex
	topK     int
}

func NewRetriever(embedder QueryEmbedder, index vectorstore.VectorIndex, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, namespace, message string) (string, error) {
	vec, err := r.embedder.EmbedSingle(ctx, message)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, namespace, vec, vectorstore.QueryOptions{
		TopK:            r.topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return "", fmt.Errorf("query vectors: %w", err)
	}
	if len(matches) == 0 {
		return NoMatchesContext, nil
	}

	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = FormatMatch(m.Metadata)
	}
	return strings.Join(lines, "\n"), nil
}

// FormatMatch renders one match as a context line.
func FormatMatch(meta map[string]any) string {
	category := metaString(meta, "categoryEn")
	if category == "" {
		category = metaString(meta, "category")
	}
	if category == "" {
		category = "General"
	}
	return fmt.Sprintf("• %s — %s | Category: %s | Price: $%s | Dietary: %s",
		metaString(meta, "name"),
		metaString(meta, "description"),
		category,
		metaString(meta, "price"),
		metaString(meta, "dietary"),
	)
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
