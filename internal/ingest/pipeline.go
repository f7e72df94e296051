package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/menuwaiter/internal/menu"
	"github.com/nikhilbhutani/menuwaiter/internal/vectorstore"
)

const (
	DefaultBatchSize = 50
	maxPopularItems  = 3
)

// ErrNoMenuItems is returned when no row carries an item name.
var ErrNoMenuItems = errors.New("no menu items found")

// Embedder maps ordered texts to ordered vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type PopularItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

type Result struct {
	Namespace    string        `json:"namespace"`
	ItemCount    int           `json:"itemCount"`
	PopularItems []PopularItem `json:"popularItems"`
}

// Pipeline embeds menu documents and stores them under a per-upload namespace.
type Pipeline struct {
	embedder  Embedder
	index     vectorstore.VectorIndex
	batchSize int
}

func NewPipeline(embedder Embedder, index vectorstore.VectorIndex, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{embedder: embedder, index: index, batchSize: batchSize}
}

// NewNamespace returns a fresh namespace identifier for one upload.
func NewNamespace() string {
	return uuid.NewString()
}

// Ingest stores rows under a freshly generated namespace.
func (p *Pipeline) Ingest(ctx context.Context, rows []menu.Row) (*Result, error) {
	return p.IngestInto(ctx, NewNamespace(), rows)
}

// IngestInto stores rows under namespace, which must not have been used by
// any other upload. Batches run strictly one after another; the first
// provider error aborts the run and the partially written namespace is
// deleted on a best-effort basis.
func (p *Pipeline) IngestInto(ctx context.Context, namespace string, rows []menu.Row) (*Result, error) {
	eligible := make([]menu.Row, 0, len(rows))
	for _, r := range rows {
		if r.HasName() {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w. %s", ErrNoMenuItems, menu.RequiredColumnsHint)
	}

	docs := make([]menu.Document, len(eligible))
	for i, r := range eligible {
		docs[i] = menu.BuildDocument(r, i)
	}

	for start := 0; start < len(docs); start += p.batchSize {
		end := min(start+p.batchSize, len(docs))
		if err := p.storeBatch(ctx, namespace, start, docs[start:end]); err != nil {
			p.discard(ctx, namespace)
			return nil, fmt.Errorf("ingest batch %d: %w", start/p.batchSize, err)
		}
	}

	result := &Result{
		Namespace:    namespace,
		ItemCount:    len(docs),
		PopularItems: popularItems(docs),
	}

	slog.Info("menu ingested",
		"namespace", namespace,
		"items", result.ItemCount,
		"batches", (len(docs)+p.batchSize-1)/p.batchSize,
	)
	return result, nil
}

func (p *Pipeline) storeBatch(ctx context.Context, namespace string, offset int, batch []menu.Document) error {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Text
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embed documents: got %d vectors for %d documents", len(embeddings), len(batch))
	}

	vectors := make([]vectorstore.Vector, len(batch))
	for i, d := range batch {
		vectors[i] = vectorstore.Vector{
			ID:       fmt.Sprintf("%s-%d", namespace, offset+i),
			Values:   embeddings[i],
			Metadata: d.Metadata.Map(),
		}
	}

	if err := p.index.Upsert(ctx, namespace, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

func (p *Pipeline) discard(ctx context.Context, namespace string) {
	if err := p.index.DeleteNamespace(context.WithoutCancel(ctx), namespace); err != nil {
		slog.Warn("failed to discard partial namespace", "namespace", namespace, "error", err)
	}
}

func popularItems(docs []menu.Document) []PopularItem {
	items := make([]PopularItem, 0, maxPopularItems)
	for _, d := range docs {
		if len(items) == maxPopularItems {
			break
		}
		if !d.Metadata.Available {
			continue
		}
		items = append(items, PopularItem{
			Name:     d.Metadata.Name,
			Category: d.Metadata.CategoryEn,
			Price:    d.Metadata.Price,
		})
	}
	return items
}
