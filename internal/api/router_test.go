package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/menuwaiter/internal/agent"
	"github.com/nikhilbhutani/menuwaiter/internal/api/handlers"
	"github.com/nikhilbhutani/menuwaiter/internal/assistant"
	"github.com/nikhilbhutani/menuwaiter/internal/cache"
	"github.com/nikhilbhutani/menuwaiter/internal/ingest"
	"github.com/nikhilbhutani/menuwaiter/internal/llm"
	"github.com/nikhilbhutani/menuwaiter/internal/queue"
	"github.com/nikhilbhutani/menuwaiter/internal/vectorstore"
)

// wordEmbedder hashes each lowercase word into one of 16 buckets.
type wordEmbedder struct{}

func (wordEmbedder) vector(text string) []float32 {
	v := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, c := range w {
			h = h*31 + uint32(c)
		}
		v[h%16]++
	}
	v[0] += 0.01
	return v
}

func (e wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e wordEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// scriptedLLM answers classifier prompts by keyword and everything else
// with a fixed waiter reply.
type scriptedLLM struct {
	err error
}

func (s scriptedLLM) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	system := req.Messages[0].Content
	user := strings.ToLower(req.Messages[len(req.Messages)-1].Content)
	switch {
	case strings.HasPrefix(system, "You are a classifier."):
		if strings.Contains(user, "weather") {
			return &llm.ChatResponse{Content: "False"}, nil
		}
		return &llm.ChatResponse{Content: "True"}, nil
	case strings.HasPrefix(system, "Extract the food category"):
		return &llm.ChatResponse{Content: "all"}, nil
	}
	return &llm.ChatResponse{Content: "The Har Gow is lovely!"}, nil
}

func (s scriptedLLM) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := s.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Content: resp.Content}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

type memoryStatus struct {
	mu       sync.Mutex
	statuses map[string]*cache.IngestStatus
}

func (m *memoryStatus) Pending(_ context.Context, ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[ns] = &cache.IngestStatus{Namespace: ns, Status: cache.StatusPending}
	return nil
}

func (m *memoryStatus) Get(_ context.Context, ns string) (*cache.IngestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[ns]
	if !ok {
		return nil, cache.ErrUnknownNamespace
	}
	return st, nil
}

type recordingQueue struct {
	payloads []queue.MenuIngestPayload
}

func (q *recordingQueue) EnqueueMenuIngest(_ context.Context, p queue.MenuIngestPayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

type testServer struct {
	handler http.Handler
	store   *vectorstore.MemoryStore
	queue   *recordingQueue
	status  *memoryStatus
}

func newTestServer(t *testing.T, l scriptedLLM) *testServer {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	q := &recordingQueue{}
	status := &memoryStatus{statuses: map[string]*cache.IngestStatus{}}
	emb := wordEmbedder{}

	graph := agent.NewGraph(agent.NewClassifier(l, "classifier"), agent.NewRetriever(emb, store, 10))
	rt := NewRouter(Deps{
		Ingester:  ingest.NewPipeline(emb, store, 50),
		Queue:     q,
		Status:    status,
		Graph:     graph,
		Responder: assistant.NewResponder(l, "responder"),
		Health:    map[string]handlers.Pinger{},
	})
	return &testServer{handler: rt.Setup(), store: store, queue: q, status: status}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

const menuCSV = "CategoryTitleEn,ItemNameEn,ItemNamePt,ItemPrice,Availability,ItemDescriptionEn\n" +
	"Dumplings,Har Gow,,\"5,50\",1,Shrimp dumplings\n" +
	"Soups,Garden Soup,Sopa da Horta,6.5,1,Tofu and vegetables\n" +
	",,,3,1,Nameless\n" +
	"Mains,Roast Duck,Pato Assado,16,0,Crispy duck\n"

func uploadRequest(t *testing.T, target, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func upload(t *testing.T, s *testServer) ingest.Result {
	t.Helper()
	rec := s.do(t, uploadRequest(t, "/api/v1/menus", "menu.csv", menuCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[ingest.Result](t, rec)
}

func TestUploadMenu(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})

	res := upload(t, s)
	assert.NotEmpty(t, res.Namespace)
	assert.Equal(t, 3, res.ItemCount)
	assert.Equal(t, 3, s.store.Count(res.Namespace))

	require.Len(t, res.PopularItems, 2)
	assert.Equal(t, ingest.PopularItem{Name: "Har Gow", Category: "Dumplings", Price: 5.5}, res.PopularItems[0])
	assert.Equal(t, "Garden Soup", res.PopularItems[1].Name)

	again := upload(t, s)
	assert.NotEqual(t, res.Namespace, again.Namespace)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})

	rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/menus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, uploadRequest(t, "/api/v1/menus", "menu.csv", "ItemNameEn,ItemPrice\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "ItemNameEn / ItemNamePt")

	rec = s.do(t, uploadRequest(t, "/api/v1/menus", "menu.csv", "Name,Price\nHar Gow,5\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t,
		"No menu items found. Ensure columns ItemNameEn / ItemNamePt and ItemPrice are present.",
		decode[map[string]string](t, rec)["error"])

	rec = s.do(t, uploadRequest(t, "/api/v1/menus", "menu.pdf", "%PDF"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAsync(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})

	rec := s.do(t, uploadRequest(t, "/api/v1/menus?async=true", "menu.csv", menuCSV))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	assert.Equal(t, cache.StatusPending, body["status"])

	require.Len(t, s.queue.payloads, 1)
	p := s.queue.payloads[0]
	assert.Equal(t, body["namespace"], p.Namespace)
	assert.Equal(t, "menu.csv", p.Filename)
	assert.Len(t, p.Rows, 3)
	assert.Zero(t, s.store.Count(p.Namespace), "ingestion happens in the worker")

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/menus/"+p.Namespace+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cache.StatusPending, decode[cache.IngestStatus](t, rec).Status)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/menus/unknown/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuery(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})
	res := upload(t, s)

	type queryResp struct {
		IsOnTopic bool   `json:"isOnTopic"`
		Context   string `json:"context"`
	}

	rec := s.do(t, jsonRequest(t, "/api/v1/query", map[string]string{
		"namespace":   res.Namespace,
		"userMessage": "Do you have vegetarian options?",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	on := decode[queryResp](t, rec)
	assert.True(t, on.IsOnTopic)
	assert.Len(t, strings.Split(on.Context, "\n"), 3)
	assert.Contains(t, on.Context, "• Garden Soup — Tofu and vegetables | Category: Soups | Price: $6.5")

	rec = s.do(t, jsonRequest(t, "/api/v1/query", map[string]string{
		"namespace":   res.Namespace,
		"userMessage": "What's the weather today?",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	off := decode[queryResp](t, rec)
	assert.False(t, off.IsOnTopic)
	assert.True(t, strings.HasPrefix(off.Context, "OFF_TOPIC: "))

	rec = s.do(t, jsonRequest(t, "/api/v1/query", map[string]string{
		"namespace":   "never-uploaded",
		"userMessage": "dumplings?",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, agent.NoMatchesContext, decode[queryResp](t, rec).Context)
}

func TestQueryValidation(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})

	rec := s.do(t, jsonRequest(t, "/api/v1/query", map[string]string{"userMessage": "hi"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No menu session. Upload your menu first.", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, jsonRequest(t, "/api/v1/query", map[string]string{"namespace": "ns", "userMessage": "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryClassificationFailure(t *testing.T) {
	s := newTestServer(t, scriptedLLM{err: errors.New("provider down")})

	rec := s.do(t, jsonRequest(t, "/api/v1/query", map[string]string{"namespace": "ns", "userMessage": "hi"}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "provider down")
}

func TestChat(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})
	res := upload(t, s)

	type chatResp struct {
		IsOnTopic bool        `json:"isOnTopic"`
		Message   llm.Message `json:"message"`
	}

	rec := s.do(t, jsonRequest(t, "/api/v1/chat", map[string]any{
		"namespace": res.Namespace,
		"messages": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"type": "text", "text": "Any dumplings?"}}},
		},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	on := decode[chatResp](t, rec)
	assert.True(t, on.IsOnTopic)
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "The Har Gow is lovely!"}, on.Message)

	rec = s.do(t, jsonRequest(t, "/api/v1/chat", map[string]any{
		"namespace": res.Namespace,
		"messages":  []map[string]string{{"role": "user", "content": "What's the weather today?"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	off := decode[chatResp](t, rec)
	assert.False(t, off.IsOnTopic)
	assert.Equal(t, strings.TrimPrefix(agent.OffTopicContext, "OFF_TOPIC: "), off.Message.Content)
}

func TestChatValidation(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{name: "no namespace", body: map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}}, want: "No menu session. Upload your menu first."},
		{name: "no messages", body: map[string]any{"namespace": "ns"}, want: "No messages provided."},
		{name: "no user text", body: map[string]any{"namespace": "ns", "messages": []map[string]string{{"role": "assistant", "content": "hello"}}}, want: "Could not extract user message."},
		{name: "user text too long", body: map[string]any{"namespace": "ns", "messages": []map[string]string{{"role": "user", "content": strings.Repeat("dumpling ", 500)}}}, want: "userMessage required (at most 4000 characters)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, jsonRequest(t, "/api/v1/chat", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestChatStream(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})
	res := upload(t, s)

	rec := s.do(t, jsonRequest(t, "/api/v1/chat/stream", map[string]any{
		"namespace": res.Namespace,
		"messages":  []map[string]string{{"role": "user", "content": "Any dumplings?"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `data: {"content":"The Har Gow is lovely!","done":false}`)
	assert.Contains(t, rec.Body.String(), `data: {"done":true}`)
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	rt := NewRouter(Deps{Health: map[string]handlers.Pinger{}, RateLimitRPS: 0.001, RateLimitBurst: 2})
	h := rt.Setup()

	do := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.7:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("198.51.100.1"))
	assert.Equal(t, http.StatusOK, do("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, do("198.51.100.3"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, scriptedLLM{})

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
