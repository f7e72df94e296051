package vectorstore

import (
	"context"
	"errors"
)

// ErrNamespaceRequired is returned when an operation is attempted without a namespace.
var ErrNamespaceRequired = errors.New("namespace is required")

// Vector is one embedded item stored under a namespace.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type QueryOptions struct {
	TopK            int
	IncludeMetadata bool
}

// Match is a query hit. Metadata is nil unless requested.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorIndex is a namespace-scoped similarity index. Vectors written under
// one namespace are never visible to queries against another. Query results
// are ordered by descending similarity.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Query(ctx context.Context, namespace string, vector []float32, opts QueryOptions) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

const defaultTopK = 10

func normalizeTopK(k int) int {
	if k <= 0 {
		return defaultTopK
	}
	return k
}
