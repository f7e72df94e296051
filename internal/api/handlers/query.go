package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/menuwaiter/internal/agent"
)

const noSessionMessage = "No menu session. Upload your menu first."

// TurnRunner runs the retrieval graph for one message.
type TurnRunner interface {
	Run(ctx context.Context, namespace, userMessage string) (*agent.State, error)
}

type QueryHandler struct {
	graph TurnRunner
}

func NewQueryHandler(g TurnRunner) *QueryHandler {
	return &QueryHandler{graph: g}
}

const maxMessageLen = 4000

type queryRequest struct {
	Namespace   string `json:"namespace" validate:"required"`
	UserMessage string `json:"userMessage" validate:"required,max=4000"`
}

var queryMessages = map[string]string{
	"Namespace":   noSessionMessage,
	"UserMessage": fmt.Sprintf("userMessage required (at most %d characters)", maxMessageLen),
}

type queryResponse struct {
	IsOnTopic bool   `json:"isOnTopic"`
	Context   string `json:"context"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.UserMessage = strings.TrimSpace(req.UserMessage)
	if msg, ok := validationMessage(req, queryMessages); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	state, err := h.graph.Run(r.Context(), req.Namespace, req.UserMessage)
	if err != nil {
		writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{IsOnTopic: state.IsOnTopic, Context: state.Context})
}

// writeTurnError maps graph failures onto HTTP. All of them are upstream
// provider failures; classification failures name the failed stage.
func writeTurnError(w http.ResponseWriter, err error) {
	var cerr *agent.ClassificationError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error(), "stage": cerr.Stage})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}
