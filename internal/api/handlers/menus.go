package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/menuwaiter/internal/cache"
	"github.com/nikhilbhutani/menuwaiter/internal/ingest"
	"github.com/nikhilbhutani/menuwaiter/internal/menu"
	"github.com/nikhilbhutani/menuwaiter/internal/queue"
)

const noMenuItemsMessage = "No menu items found. " + menu.RequiredColumnsHint

// Ingester stores normalized rows under a fresh namespace.
type Ingester interface {
	Ingest(ctx context.Context, rows []menu.Row) (*ingest.Result, error)
}

// Enqueuer schedules background ingestion.
type Enqueuer interface {
	EnqueueMenuIngest(ctx context.Context, payload queue.MenuIngestPayload) error
}

// StatusTracker records and reads background ingestion status.
type StatusTracker interface {
	Pending(ctx context.Context, namespace string) error
	Get(ctx context.Context, namespace string) (*cache.IngestStatus, error)
}

type MenuHandler struct {
	ingester Ingester
	queue    Enqueuer
	status   StatusTracker
	maxBytes int64
}

// NewMenuHandler builds the upload handlers. queue and status may be nil,
// in which case only synchronous ingestion is offered.
func NewMenuHandler(ingester Ingester, q Enqueuer, status StatusTracker, maxUploadMB int) *MenuHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &MenuHandler{
		ingester: ingester,
		queue:    q,
		status:   status,
		maxBytes: int64(maxUploadMB) << 20,
	}
}

func (h *MenuHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	grid, err := menu.ReadUpload(header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := menu.Normalize(grid)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": noMenuItemsMessage})
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.enqueue(w, r, header.Filename, rows)
		return
	}

	res, err := h.ingester.Ingest(r.Context(), rows)
	if err != nil {
		if errors.Is(err, ingest.ErrNoMenuItems) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": noMenuItemsMessage})
			return
		}
		slog.Error("menu ingestion failed", "file", header.Filename, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *MenuHandler) enqueue(w http.ResponseWriter, r *http.Request, filename string, rows []menu.Row) {
	if h.queue == nil || h.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "background ingestion is not enabled"})
		return
	}

	namespace := ingest.NewNamespace()
	if err := h.status.Pending(r.Context(), namespace); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	err := h.queue.EnqueueMenuIngest(r.Context(), queue.MenuIngestPayload{
		Namespace: namespace,
		Filename:  filename,
		Rows:      rows,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"namespace": namespace,
		"status":    cache.StatusPending,
	})
}

func (h *MenuHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "background ingestion is not enabled"})
		return
	}

	st, err := h.status.Get(r.Context(), chi.URLParam(r, "namespace"))
	if errors.Is(err, cache.ErrUnknownNamespace) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, st)
}
