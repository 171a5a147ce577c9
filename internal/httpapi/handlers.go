package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avdreher/parley/internal/chat"
	"github.com/avdreher/parley/internal/observe"
	"github.com/avdreher/parley/pkg/provider/llm"
)

// chatRequest is the body of POST /chat.
type chatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`

	// UseBasic selects the legacy single-prompt completion path.
	UseBasic bool `json:"useBasic,omitempty"`

	// UseTools enables function calling. A pointer distinguishes "omitted"
	// (defaults to true) from an explicit false.
	UseTools *bool `json:"useTools,omitempty"`
}

// chatResponse is the body of a successful POST /chat.
type chatResponse struct {
	Reply     string `json:"reply"`
	UsedTools bool   `json:"usedTools"`
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// toolInfo is the wire shape of one tool definition in GET /tools.
type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	useTools := true
	if req.UseTools != nil {
		useTools = *req.UseTools
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveRequests.Add(r.Context(), 1)
		defer s.cfg.Metrics.ActiveRequests.Add(r.Context(), -1)
	}

	resp, err := s.cfg.Orchestrator.Chat(r.Context(), chat.Request{
		Message:  req.Message,
		Model:    req.Model,
		UseTools: useTools,
		UseBasic: req.UseBasic,
	})
	if err != nil {
		status := statusFor(err)
		observe.Logger(r.Context()).Error("chat failed", "status", status, "err", err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:     resp.Reply,
		UsedTools: resp.UsedTools,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "running",
		"provider":            s.cfg.ProviderName,
		"provider_configured": s.cfg.ProviderConfigured,
		"pushover_configured": s.cfg.Notifier.Configured(),
		"tools_available":     s.cfg.Registry.Len(),
	})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	defs := s.cfg.Registry.Definitions()
	infos := make([]toolInfo, 0, len(defs))
	for _, d := range defs {
		infos = append(infos, toolInfo{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tools":               infos,
		"count":               len(infos),
		"available_functions": s.cfg.Registry.Names(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Parley",
		"version": s.cfg.Version,
		"features": []string{
			"LLM chat relay",
			"Function calling (weather, time, calculator)",
			"Pushover notifications",
		},
		"endpoints": map[string]string{
			"chat":          "/chat (POST)",
			"status":        "/status (GET)",
			"tools":         "/tools (GET)",
			"test_pushover": "/test-pushover (POST)",
			"metrics":       "/metrics (GET)",
			"health":        "/healthz, /readyz (GET)",
		},
	})
}

func (s *Server) handleTestPushover(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Notifier.Configured() {
		writeJSON(w, http.StatusOK, map[string]any{
			"configured": false,
			"message":    "Pushover not configured. Set pushover.api_token and pushover.user_key (or PUSHOVER_API_TOKEN and PUSHOVER_USER_KEY).",
		})
		return
	}

	err := s.cfg.Notifier.Send(r.Context(),
		"Parley Test Notification",
		"This is a test notification from your chat relay. Pushover integration is working correctly!",
	)

	msg := "Test notification sent!"
	if err != nil {
		msg = "Failed to send notification: " + err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configured": true,
		"success":    err == nil,
		"message":    msg,
	})
}

// statusFor maps the error taxonomy to HTTP status codes: missing
// configuration is the server's fault (500), provider transport/API failures
// and provider-contract violations are upstream failures (502), timeouts are
// 504, and anything unclassified is a generic 500.
func statusFor(err error) int {
	var provErr *llm.ProviderError
	var argErr *chat.ArgumentParseError

	switch {
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusInternalServerError
	case errors.As(err, &argErr):
		return http.StatusBadGateway
	case errors.As(err, &provErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
