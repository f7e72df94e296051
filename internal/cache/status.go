package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/menuwaiter/internal/ingest"
)

const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"

	defaultStatusTTL = 24 * time.Hour
	statusKeyPrefix  = "menu:status:"
)

// ErrUnknownNamespace is returned when no ingestion was recorded for a namespace.
var ErrUnknownNamespace = errors.New("unknown namespace")

// IngestStatus tracks one asynchronous menu ingestion.
type IngestStatus struct {
	Namespace    string               `json:"namespace"`
	Status       string               `json:"status"`
	ItemCount    int                  `json:"itemCount,omitempty"`
	PopularItems []ingest.PopularItem `json:"popularItems,omitempty"`
	Error        string               `json:"error,omitempty"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// StatusStore keeps ingestion status in Redis so the API and worker
// processes share it.
type StatusStore struct {
	cache *Cache
	ttl   time.Duration
}

func NewStatusStore(c *Cache, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusStore{cache: c, ttl: ttl}
}

func (s *StatusStore) Pending(ctx context.Context, namespace string) error {
	return s.put(ctx, IngestStatus{Namespace: namespace, Status: StatusPending})
}

func (s *StatusStore) Ready(ctx context.Context, res *ingest.Result) error {
	return s.put(ctx, IngestStatus{
		Namespace:    res.Namespace,
		Status:       StatusReady,
		ItemCount:    res.ItemCount,
		PopularItems: res.PopularItems,
	})
}

func (s *StatusStore) Failed(ctx context.Context, namespace string, cause error) error {
	return s.put(ctx, IngestStatus{Namespace: namespace, Status: StatusFailed, Error: cause.Error()})
}

func (s *StatusStore) Get(ctx context.Context, namespace string) (*IngestStatus, error) {
	var st IngestStatus
	if err := s.cache.Get(ctx, statusKey(namespace), &st); err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrUnknownNamespace
		}
		return nil, err
	}
	return &st, nil
}

func (s *StatusStore) put(ctx context.Context, st IngestStatus) error {
	st.UpdatedAt = time.Now().UTC()
	if err := s.cache.Set(ctx, statusKey(st.Namespace), st, s.ttl); err != nil {
		return fmt.Errorf("record %s status: %w", st.Status, err)
	}
	return nil
}

func statusKey(namespace string) string {
	return statusKeyPrefix + namespace
}
