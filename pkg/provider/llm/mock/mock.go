// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the orchestrator sends correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. Configure all fields before first use; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponses: []*llm.CompletionResponse{{Content: "Hello!"}},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/avdreher/parley/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// TextCall records a single invocation of CompleteText.
type TextCall struct {
	// Ctx is the context passed to CompleteText.
	Ctx context.Context
	// Model is the model override passed to CompleteText.
	Model string
	// Prompt is the prompt passed to CompleteText.
	Prompt string
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// CompleteResponses are returned by successive Complete calls in order.
	// When calls outnumber responses, the last response is repeated.
	CompleteResponses []*llm.CompletionResponse

	// CompleteErr, if non-nil, is returned by every Complete call.
	CompleteErr error

	// TextResponse is returned by CompleteText.
	TextResponse string

	// TextErr, if non-nil, is returned by CompleteText.
	TextErr error

	// Caps is returned by Capabilities.
	Caps llm.ModelCapabilities

	// --- Recorded invocations ---

	// CompleteCalls records every Complete invocation in order.
	CompleteCalls []CompleteCall

	// TextCalls records every CompleteText invocation in order.
	TextCalls []TextCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Snapshot the message slice so later caller-side appends do not mutate
	// the recorded request.
	recorded := req
	recorded.Messages = append([]llm.Message(nil), req.Messages...)
	recorded.Tools = append([]llm.ToolDefinition(nil), req.Tools...)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: recorded})

	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if len(p.CompleteResponses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	idx := len(p.CompleteCalls) - 1
	if idx >= len(p.CompleteResponses) {
		idx = len(p.CompleteResponses) - 1
	}
	return p.CompleteResponses[idx], nil
}

// CompleteText implements llm.Provider.
func (p *Provider) CompleteText(ctx context.Context, model, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TextCalls = append(p.TextCalls, TextCall{Ctx: ctx, Model: model, Prompt: prompt})
	if p.TextErr != nil {
		return "", p.TextErr
	}
	return p.TextResponse, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.Caps
}
