package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/menuwaiter/internal/ingest"
	"github.com/nikhilbhutani/menuwaiter/internal/menu"
	"github.com/nikhilbhutani/menuwaiter/internal/queue"
)

// Ingester stores rows under a caller-chosen namespace.
type Ingester interface {
	IngestInto(ctx context.Context, namespace string, rows []menu.Row) (*ingest.Result, error)
}

// StatusRecorder publishes the outcome of an ingestion.
type StatusRecorder interface {
	Ready(ctx context.Context, res *ingest.Result) error
	Failed(ctx context.Context, namespace string, cause error) error
}

type IngestWorker struct {
	pipeline Ingester
	status   StatusRecorder
}

func NewIngestWorker(pipeline Ingester, status StatusRecorder) *IngestWorker {
	return &IngestWorker{pipeline: pipeline, status: status}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.MenuIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Namespace == "" {
		return fmt.Errorf("menu ingest task without namespace: %w", asynq.SkipRetry)
	}

	slog.Info("ingesting menu", "namespace", payload.Namespace, "rows", len(payload.Rows), "file", payload.Filename)

	res, err := w.pipeline.IngestInto(ctx, payload.Namespace, payload.Rows)
	if err != nil {
		if serr := w.status.Failed(ctx, payload.Namespace, err); serr != nil {
			slog.Error("failed to record ingestion failure", "namespace", payload.Namespace, "error", serr)
		}
		if errors.Is(err, ingest.ErrNoMenuItems) {
			return fmt.Errorf("ingest menu: %w", errors.Join(err, asynq.SkipRetry))
		}
		return fmt.Errorf("ingest menu: %w", err)
	}

	if err := w.status.Ready(ctx, res); err != nil {
		return fmt.Errorf("record ready status: %w", err)
	}

	slog.Info("menu ready", "namespace", res.Namespace, "items", res.ItemCount)
	return nil
}
