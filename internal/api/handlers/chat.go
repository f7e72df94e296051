package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/menuwaiter/internal/agent"
	"github.com/nikhilbhutani/menuwaiter/internal/assistant"
	"github.com/nikhilbhutani/menuwaiter/internal/llm"
)

// Replier turns a finished turn into the waiter's answer.
type Replier interface {
	Reply(ctx context.Context, state *agent.State, history []llm.Message) (string, error)
	Stream(ctx context.Context, state *agent.State, history []llm.Message) (<-chan llm.StreamChunk, error)
}

type ChatHandler struct {
	graph     TurnRunner
	responder Replier
}

func NewChatHandler(g TurnRunner, responder Replier) *ChatHandler {
	return &ChatHandler{graph: g, responder: responder}
}

// chatMessage accepts both plain {role, content} messages and UI messages
// whose text lives in typed parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Parts   []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"parts"`
}

func (m chatMessage) text() string {
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

type chatRequest struct {
	Namespace string        `json:"namespace" validate:"required"`
	Messages  []chatMessage `json:"messages" validate:"required,min=1"`
}

var chatMessages = map[string]string{
	"Namespace": noSessionMessage,
	"Messages":  "No messages provided.",
}

type chatResponse struct {
	IsOnTopic bool        `json:"isOnTopic"`
	Message   llm.Message `json:"message"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	history, state, ok := h.runTurn(w, r)
	if !ok {
		return
	}

	reply, err := h.responder.Reply(r.Context(), state, history)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		IsOnTopic: state.IsOnTopic,
		Message:   llm.Message{Role: llm.RoleAssistant, Content: reply},
	})
}

func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	history, state, ok := h.runTurn(w, r)
	if !ok {
		return
	}

	ch, err := h.responder.Stream(r.Context(), state, history)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range ch {
		if chunk.Error != nil {
			fmt.Fprintf(w, "data: {\"error\":%q}\n\n", chunk.Error.Error())
			flusher.Flush()
			return
		}

		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if chunk.Done {
			return
		}
	}
}

// runTurn validates the request and runs the retrieval graph on the latest
// user message. It writes the error response itself and reports ok=false
// when the request cannot proceed.
func (h *ChatHandler) runTurn(w http.ResponseWriter, r *http.Request) ([]llm.Message, *agent.State, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, nil, false
	}

	if msg, ok := validationMessage(req, chatMessages); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return nil, nil, false
	}

	history := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, llm.Message{Role: m.Role, Content: m.text()})
	}

	userMessage := assistant.LastUserMessage(history)
	if userMessage == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Could not extract user message."})
		return nil, nil, false
	}
	if utf8.RuneCountInString(userMessage) > maxMessageLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": queryMessages["UserMessage"]})
		return nil, nil, false
	}

	state, err := h.graph.Run(r.Context(), req.Namespace, userMessage)
	if err != nil {
		writeTurnError(w, err)
		return nil, nil, false
	}
	return history, state, true
}
