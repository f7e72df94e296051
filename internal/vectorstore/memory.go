package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorIndex using brute-force cosine
// similarity. It backs local development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Vector
	order      map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string]Vector),
		order:      make(map[string][]string),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, namespace string, vectors []Vector) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}
	for _, v := range vectors {
		if v.ID == "" {
			return fmt.Errorf("upsert: vector id is required")
		}
		if len(v.Values) == 0 {
			return fmt.Errorf("upsert vector %s: empty values", v.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]Vector)
		s.namespaces[namespace] = ns
	}
	for _, v := range vectors {
		if _, exists := ns[v.ID]; !exists {
			s.order[namespace] = append(s.order[namespace], v.ID)
		}
		ns[v.ID] = Vector{
			ID:       v.ID,
			Values:   append([]float32(nil), v.Values...),
			Metadata: maps.Clone(v.Metadata),
		}
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, namespace string, vector []float32, opts QueryOptions) ([]Match, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	ids := s.order[namespace]
	matches := make([]Match, 0, len(ids))
	for _, id := range ids {
		v := ns[id]
		m := Match{ID: id, Score: cosine(vector, v.Values)}
		if opts.IncludeMetadata {
			m.Metadata = maps.Clone(v.Metadata)
		}
		matches = append(matches, m)
	}

	// Stable so equal scores keep insertion order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k := normalizeTopK(opts.TopK); len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) DeleteNamespace(_ context.Context, namespace string) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	delete(s.order, namespace)
	return nil
}

// Count reports how many vectors a namespace holds.
func (s *MemoryStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
