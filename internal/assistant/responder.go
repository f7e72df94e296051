package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/menuwaiter/internal/agent"
	"github.com/nikhilbhutani/menuwaiter/internal/llm"
)

const offTopicMarker = "OFF_TOPIC: "

// fallbackRefusal is used when a turn is off topic but its context carries no refusal.
const fallbackRefusal = "I can only help with our restaurant menu! Ask me about dishes, prices, or dietary info."

const waiterPrompt = `You are a friendly, enthusiastic dim sum restaurant assistant called "Dim Sum Montijo AI Waiter".

CONTEXT - here are the relevant menu items:
%s

RULES:
1. Answer based ONLY on the menu context above. Never invent items.
2. Be casual, warm, and enthusiastic, like a real waiter who loves the food.
3. Keep answers to 1-2 sentences MAX unless listing items.
4. When listing items, use a clean format with names and prices.
5. If the user wants to ORDER something, repeat back the exact item name, quantity, and price from the menu context and confirm it in a friendly way.
6. For dietary questions, check the "Dietary" field in the context and be precise.
7. Always mention prices when recommending items.`

// Chatter is the slice of llm.Gateway used for response generation.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error)
}

// Responder turns a finished graph turn into the waiter's reply.
type Responder struct {
	llm         Chatter
	model       string
	temperature float64
}

func NewResponder(c Chatter, model string) *Responder {
	return &Responder{llm: c, model: model, temperature: 0.7}
}

// SystemPrompt grounds the waiter persona in the retrieved menu context.
func SystemPrompt(menuContext string) string {
	return fmt.Sprintf(waiterPrompt, menuContext)
}

// Refusal extracts the user-facing refusal from an off-topic turn. ok is
// false for turns that should be answered by the model.
func Refusal(state *agent.State) (string, bool) {
	if after, found := strings.CutPrefix(state.Context, offTopicMarker); found {
		return after, true
	}
	if !state.IsOnTopic {
		return fallbackRefusal, true
	}
	return "", false
}

// Reply answers the conversation in one response. Off-topic turns return
// the refusal verbatim without calling the model.
func (r *Responder) Reply(ctx context.Context, state *agent.State, history []llm.Message) (string, error) {
	if refusal, ok := Refusal(state); ok {
		return refusal, nil
	}

	resp, err := r.llm.Chat(ctx, r.request(state, history))
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return resp.Content, nil
}

// Stream is Reply delivered incrementally. The channel is closed after a
// chunk with Done set or an Error.
func (r *Responder) Stream(ctx context.Context, state *agent.State, history []llm.Message) (<-chan llm.StreamChunk, error) {
	if refusal, ok := Refusal(state); ok {
		ch := make(chan llm.StreamChunk, 2)
		ch <- llm.StreamChunk{Content: refusal}
		ch <- llm.StreamChunk{Done: true}
		close(ch)
		return ch, nil
	}

	ch, err := r.llm.ChatStream(ctx, r.request(state, history))
	if err != nil {
		return nil, fmt.Errorf("stream reply: %w", err)
	}
	return ch, nil
}

func (r *Responder) request(state *agent.State, history []llm.Message) llm.ChatRequest {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(state.Context)})
	for _, m := range history {
		if m.Role == llm.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	return llm.ChatRequest{
		Model:       r.model,
		Messages:    msgs,
		Temperature: r.temperature,
	}
}

// LastUserMessage returns the trimmed content of the latest user turn, or
// "" when there is none.
func LastUserMessage(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
