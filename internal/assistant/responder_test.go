package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/menuwaiter/internal/agent"
	"github.com/nikhilbhutani/menuwaiter/internal/llm"
)

type fakeChatter struct {
	reply string
	err   error
	got   []llm.ChatRequest
}

func (f *fakeChatter) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeChatter) ChatStream(_ context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llm.StreamChunk, 3)
	ch <- llm.StreamChunk{Content: f.reply[:3]}
	ch <- llm.StreamChunk{Content: f.reply[3:]}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func collect(t *testing.T, ch <-chan llm.StreamChunk) string {
	t.Helper()
	var out string
	for c := range ch {
		require.NoError(t, c.Error)
		out += c.Content
	}
	return out
}

func TestReplyGroundsOnContext(t *testing.T) {
	chat := &fakeChatter{reply: "Try the Har Gow for $5.5!"}
	r := NewResponder(chat, "gpt-4o")

	state := &agent.State{IsOnTopic: true, Context: "• Har Gow — Shrimp dumplings | Category: Dumplings | Price: $5.5 | Dietary: x"}
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: "ignored"},
		{Role: llm.RoleUser, Content: "What dumplings do you have?"},
	}

	out, err := r.Reply(context.Background(), state, history)
	require.NoError(t, err)
	assert.Equal(t, "Try the Har Gow for $5.5!", out)

	require.Len(t, chat.got, 1)
	req := chat.got[0]
	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Dim Sum Montijo AI Waiter")
	assert.Contains(t, req.Messages[0].Content, state.Context)
	assert.Equal(t, history[1], req.Messages[1])
}

func TestReplyOffTopicSkipsModel(t *testing.T) {
	chat := &fakeChatter{}
	r := NewResponder(chat, "gpt-4o")

	out, err := r.Reply(context.Background(), &agent.State{Context: agent.OffTopicContext}, nil)
	require.NoError(t, err)
	assert.Equal(t, "I appreciate the question, but I can only help with our restaurant menu! Ask me about dishes, prices, dietary info, or place an order.", out)
	assert.Empty(t, chat.got)

	out, err = r.Reply(context.Background(), &agent.State{IsOnTopic: false}, nil)
	require.NoError(t, err)
	assert.Equal(t, fallbackRefusal, out)
}

func TestReplyError(t *testing.T) {
	r := NewResponder(&fakeChatter{err: errors.New("upstream down")}, "gpt-4o")
	_, err := r.Reply(context.Background(), &agent.State{IsOnTopic: true, Context: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate reply")
}

func TestStream(t *testing.T) {
	chat := &fakeChatter{reply: "Hello there"}
	r := NewResponder(chat, "gpt-4o")

	ch, err := r.Stream(context.Background(), &agent.State{IsOnTopic: true, Context: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", collect(t, ch))

	ch, err = r.Stream(context.Background(), &agent.State{Context: agent.OffTopicContext}, nil)
	require.NoError(t, err)
	assert.Contains(t, collect(t, ch), "I can only help with our restaurant menu")
	assert.Len(t, chat.got, 1)
}

func TestLastUserMessage(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "  second  "},
		{Role: llm.RoleAssistant, Content: "reply"},
	}
	assert.Equal(t, "second", LastUserMessage(history))
	assert.Empty(t, LastUserMessage([]llm.Message{{Role: llm.RoleAssistant, Content: "x"}}))
	assert.Empty(t, LastUserMessage(nil))
}
