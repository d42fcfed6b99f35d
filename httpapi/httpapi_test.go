package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kevin-toles/llm-gateway/circuit"
	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/orchestrator"
	"github.com/kevin-toles/llm-gateway/provider"
	"github.com/kevin-toles/llm-gateway/ratelimit"
	"github.com/kevin-toles/llm-gateway/session"
	"github.com/kevin-toles/llm-gateway/tools"
)

func newTestServer(t *testing.T) (*Server, *provider.FakeAdapter, func()) {
	t.Helper()

	fake := provider.NewFakeAdapter("fake", []string{"fake-model"}, provider.FakeResponse{
		Content:      "hello from the gateway",
		FinishReason: "stop",
		Usage:        provider.TokenUsage{PromptTokens: 4, CompletionTokens: 3, TotalTokens: 7},
	})
	cfg := &provider.RegistryConfig{Providers: map[string]provider.ProviderEntry{
		"fake": {Models: []string{"fake-model"}},
	}}
	router := provider.NewRouter(cfg, map[string]provider.Adapter{"fake": fake}, nil)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewManager(session.NewRedisStore(client, ""), time.Hour)

	registry := tools.NewRegistry()
	registry.Register(tools.RegisteredTool{
		Name:    "echo",
		Handler: func(args map[string]interface{}) (interface{}, error) { return args["text"], nil },
	})
	executor := tools.NewExecutor(registry, time.Second, 2)

	orch := orchestrator.New(router, executor, sessions, nil, circuit.NewRegistry(5, time.Minute, 1), nil, nil)
	limiter := ratelimit.NewLimiter(100, 10, 0)

	srv := NewServer(Config{
		Addr:     ":0",
		Router:   router,
		Orch:     orch,
		Sessions: sessions,
		Tools:    registry,
		Executor: executor,
		Limiter:  limiter,
	})

	return srv, fake, func() { mr.Close(); limiter.Stop() }
}

func TestHandleChatCompletions_Blocking(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(ChatCompletionRequest{
		Model:    "fake-model",
		Messages: []message.Message{message.User("hi")},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Choices[0].Message.Content != "hello from the gateway" {
		t.Fatalf("unexpected content: %+v", resp)
	}
	if rec.Header().Get("X-Token-Limit") == "" {
		t.Fatal("expected CMS proxy headers to be set")
	}
}

func TestHandleChatCompletions_UnknownModel(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(ChatCompletionRequest{
		Model:    "does-not-exist",
		Messages: []message.Message{message.User("hi")},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for no-provider, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleChatCompletions_MissingMessages(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(ChatCompletionRequest{Model: "fake-model"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching session, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting session, got %d", rec.Code)
	}

	// Deleting again is idempotent.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected idempotent 204 on repeat delete, got %d", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleListModels(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp modelListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "fake-model" {
		t.Fatalf("unexpected models response: %+v", resp)
	}
}

func TestHandleListAndExecuteTools(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing tools, got %d", rec.Code)
	}
	var defs []tools.Definition
	if err := json.Unmarshal(rec.Body.Bytes(), &defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "echo" {
		t.Fatalf("unexpected tool list: %+v", defs)
	}

	body, _ := json.Marshal(toolExecuteRequest{Name: "echo", Arguments: map[string]interface{}{"text": "ping"}})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tools/execute", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 executing tool, got %d: %s", rec.Code, rec.Body.String())
	}

	body, _ = json.Marshal(toolExecuteRequest{Name: "unknown-tool"})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tools/execute", bytes.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tool, got %d", rec.Code)
	}
}

func TestHandleHealthAndReady(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 liveness, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 readiness, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitHeaders_PresentAndEnforced(t *testing.T) {
	fake := provider.NewFakeAdapter("fake", []string{"fake-model"}, provider.FakeResponse{Content: "ok", FinishReason: "stop"})
	cfg := &provider.RegistryConfig{Providers: map[string]provider.ProviderEntry{"fake": {Models: []string{"fake-model"}}}}
	router := provider.NewRouter(cfg, map[string]provider.Adapter{"fake": fake}, nil)
	executor := tools.NewExecutor(tools.NewRegistry(), time.Second, 1)
	orch := orchestrator.New(router, executor, nil, nil, circuit.NewRegistry(5, time.Minute, 1), nil, nil)
	limiter := ratelimit.NewLimiter(1, 1, 0)
	defer limiter.Stop()

	srv := NewServer(Config{Addr: ":0", Router: router, Orch: orch, Tools: tools.NewRegistry(), Executor: executor, Limiter: limiter})

	body, _ := json.Marshal(ChatCompletionRequest{Model: "fake-model", Messages: []message.Message{message.User("hi")}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatal("expected X-RateLimit-Limit header")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
}

type fakeHTTPMetricsRecorder struct {
	rejections []string
}

func (f *fakeHTTPMetricsRecorder) RecordRateLimitRejection(key string) {
	f.rejections = append(f.rejections, key)
}

// TestRateLimitRejection_RecordsMetric checks that a 429 rejection reports
// the client key to an installed MetricsRecorder.
func TestRateLimitRejection_RecordsMetric(t *testing.T) {
	fake := provider.NewFakeAdapter("fake", []string{"fake-model"}, provider.FakeResponse{Content: "ok", FinishReason: "stop"})
	cfg := &provider.RegistryConfig{Providers: map[string]provider.ProviderEntry{"fake": {Models: []string{"fake-model"}}}}
	router := provider.NewRouter(cfg, map[string]provider.Adapter{"fake": fake}, nil)
	executor := tools.NewExecutor(tools.NewRegistry(), time.Second, 1)
	orch := orchestrator.New(router, executor, nil, nil, circuit.NewRegistry(5, time.Minute, 1), nil, nil)
	limiter := ratelimit.NewLimiter(1, 1, 0)
	defer limiter.Stop()

	recorder := &fakeHTTPMetricsRecorder{}
	srv := NewServer(Config{
		Addr: ":0", Router: router, Orch: orch, Tools: tools.NewRegistry(), Executor: executor,
		Limiter: limiter, MetricsRecorder: recorder,
	})

	body, _ := json.Marshal(ChatCompletionRequest{Model: "fake-model", Messages: []message.Message{message.User("hi")}})

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body)))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", rec.Code)
	}
	if len(recorder.rejections) != 1 {
		t.Fatalf("expected exactly 1 recorded rejection, got %d: %v", len(recorder.rejections), recorder.rejections)
	}
}
