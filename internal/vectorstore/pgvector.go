package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore keeps vectors in the menu_vectors table, one row per vector,
// scoped by the namespace column. Similarity is cosine.
//
// The embedding column is vector(1536); the configured embedding model must
// produce vectors of that size.
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}
	if len(vectors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range vectors {
		batch.Queue(
			`INSERT INTO menu_vectors (id, namespace, embedding, metadata)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET namespace = $2, embedding = $3, metadata = $4`,
			v.ID, namespace, pgvector.NewVector(v.Values), v.Metadata,
		)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for _, v := range vectors {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert vector %s: %w", v.ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// similarityQuery ranks every row of one namespace exactly. The table carries
// no approximate vector index, so the namespace btree drives the scan.
const similarityQuery = `SELECT id, CASE WHEN $4 THEN metadata END, 1 - (embedding <=> $1) AS score
	 FROM menu_vectors
	 WHERE namespace = $2
	 ORDER BY embedding <=> $1, id
	 LIMIT $3`

func (s *PgVectorStore) Query(ctx context.Context, namespace string, vector []float32, opts QueryOptions) ([]Match, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}

	rows, err := s.db.Query(ctx, similarityQuery,
		pgvector.NewVector(vector), namespace, normalizeTopK(opts.TopK), opts.IncludeMetadata,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

func (s *PgVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM menu_vectors WHERE namespace = $1", namespace); err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	return nil
}
