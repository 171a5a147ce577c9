package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avdreher/parley/internal/chat"
	"github.com/avdreher/parley/internal/notify"
	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
	"github.com/avdreher/parley/pkg/provider/llm/mock"
)

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "echo",
			Description: "echoes its arguments",
			Parameters:  map[string]any{"type": "object"},
		},
		Handler: func(_ context.Context, args string) (string, error) { return args, nil },
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

// newTestHandler assembles a full handler around the given provider. A nil
// provider models the unconfigured state.
func newTestHandler(t *testing.T, provider llm.Provider) http.Handler {
	t.Helper()

	registry := testRegistry(t)
	orch, err := chat.New(chat.Config{Provider: provider, Registry: registry})
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}

	return New(Config{
		Orchestrator:       orch,
		Registry:           registry,
		Notifier:           notify.New(notify.Config{}),
		ProviderName:       "openai",
		ProviderConfigured: provider != nil,
		Version:            "test",
		CORSOrigins:        []string{"http://localhost:4200"},
	}).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	var decoded map[string]any
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "Hi!"}},
	}
	h := newTestHandler(t, p)

	rec, body := doJSON(t, h, http.MethodPost, "/chat", `{"message": "hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if body["reply"] != "Hi!" {
		t.Errorf("reply = %v, want Hi!", body["reply"])
	}
	if body["usedTools"] != false {
		t.Errorf("usedTools = %v, want false", body["usedTools"])
	}

	// Tools are offered by default when useTools is omitted.
	if got := p.CompleteCalls[0].Req.Tools; len(got) != 1 {
		t.Errorf("tools offered = %d, want 1", len(got))
	}
}

func TestHandleChatUseToolsFalse(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "ok"}},
	}
	h := newTestHandler(t, p)

	rec, _ := doJSON(t, h, http.MethodPost, "/chat", `{"message": "hello", "useTools": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := p.CompleteCalls[0].Req.Tools; len(got) != 0 {
		t.Errorf("tools offered = %d, want 0 with useTools false", len(got))
	}
}

func TestHandleChatValidation(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid JSON", body: `{"message":`},
		{name: "empty message", body: `{"message": ""}`},
		{name: "missing message", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, body := doJSON(t, h, http.MethodPost, "/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Error("error body must carry a message")
			}
		})
	}
}

func TestHandleChatErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		provider   llm.Provider
		wantStatus int
	}{
		{
			name:       "nil provider maps to 500",
			provider:   nil,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "provider error maps to 502",
			provider: &mock.Provider{
				CompleteErr: &llm.ProviderError{Backend: "openai", Err: errors.New("upstream 500")},
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "provider timeout maps to 504",
			provider: &mock.Provider{
				CompleteErr: &llm.ProviderError{Backend: "openai", Err: context.DeadlineExceeded},
			},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name: "malformed tool arguments map to 502",
			provider: &mock.Provider{
				CompleteResponses: []*llm.CompletionResponse{
					{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo", Arguments: `{broken`}}},
				},
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unclassified error maps to 500",
			provider:   &mock.Provider{CompleteErr: errors.New("mystery")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHandler(t, tt.provider)
			rec, body := doJSON(t, h, http.MethodPost, "/chat", `{"message": "hi"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Error("error body must carry a message")
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	rec, body := doJSON(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "running" {
		t.Errorf("status field = %v, want running", body["status"])
	}
	if body["provider"] != "openai" {
		t.Errorf("provider = %v, want openai", body["provider"])
	}
	if body["provider_configured"] != true {
		t.Errorf("provider_configured = %v, want true", body["provider_configured"])
	}
	if body["pushover_configured"] != false {
		t.Errorf("pushover_configured = %v, want false", body["pushover_configured"])
	}
	if body["tools_available"] != float64(1) {
		t.Errorf("tools_available = %v, want 1", body["tools_available"])
	}
}

func TestHandleTools(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	rec, body := doJSON(t, h, http.MethodGet, "/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	toolsList, ok := body["tools"].([]any)
	if !ok || len(toolsList) != 1 {
		t.Fatalf("tools = %v, want one entry", body["tools"])
	}
	entry := toolsList[0].(map[string]any)
	if entry["name"] != "echo" {
		t.Errorf("tool name = %v, want echo", entry["name"])
	}
	if _, ok := entry["parameters"]; !ok {
		t.Error("tool entry should expose its parameter schema")
	}

	names, ok := body["available_functions"].([]any)
	if !ok || len(names) != 1 || names[0] != "echo" {
		t.Errorf("available_functions = %v, want [echo]", body["available_functions"])
	}
}

func TestHandleRoot(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	rec, body := doJSON(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["name"] != "Parley" {
		t.Errorf("name = %v, want Parley", body["name"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
	if _, ok := body["endpoints"].(map[string]any); !ok {
		t.Error("root response should list endpoints")
	}
}

func TestHandleTestPushoverUnconfigured(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	rec, body := doJSON(t, h, http.MethodPost, "/test-pushover", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["configured"] != false {
		t.Errorf("configured = %v, want false", body["configured"])
	}
}

func TestHandleTestPushoverConfigured(t *testing.T) {
	t.Parallel()

	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer push.Close()

	registry := testRegistry(t)
	orch, err := chat.New(chat.Config{Provider: &mock.Provider{}, Registry: registry})
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}
	h := New(Config{
		Orchestrator:       orch,
		Registry:           registry,
		Notifier:           notify.New(notify.Config{APIToken: "tok", UserKey: "usr", Endpoint: push.URL}),
		ProviderName:       "openai",
		ProviderConfigured: true,
	}).Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/test-pushover", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["configured"] != true || body["success"] != true {
		t.Errorf("body = %v, want configured and successful", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	r := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the allowed origin", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &mock.Provider{})

	r := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	r.Header.Set("Origin", "http://evil.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for unknown origin", got)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	t.Run("ready when configured", func(t *testing.T) {
		t.Parallel()

		h := newTestHandler(t, &mock.Provider{})
		rec, body := doJSON(t, h, http.MethodGet, "/readyz", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
		}
		if body["status"] != "ok" {
			t.Errorf("status = %v, want ok", body["status"])
		}
	})

	t.Run("not ready without provider", func(t *testing.T) {
		t.Parallel()

		h := newTestHandler(t, nil)
		rec, body := doJSON(t, h, http.MethodGet, "/readyz", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		if body["status"] != "fail" {
			t.Errorf("status = %v, want fail", body["status"])
		}
	})
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unavailable", err: llm.ErrUnavailable, want: http.StatusInternalServerError},
		{name: "argument parse", err: &chat.ArgumentParseError{Tool: "echo", ID: "c1", Err: errors.New("bad json")}, want: http.StatusBadGateway},
		{name: "provider error", err: &llm.ProviderError{Backend: "openai", Err: errors.New("boom")}, want: http.StatusBadGateway},
		{name: "provider timeout", err: &llm.ProviderError{Backend: "openai", Err: context.DeadlineExceeded}, want: http.StatusGatewayTimeout},
		{name: "bare timeout", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("mystery"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
