// Package llm defines the Provider interface for Large Language Model backends.
//
// A provider wraps a remote or local model API (e.g., OpenAI, or an Ollama
// instance reached through any-llm) and exposes a uniform interface for the
// chat orchestrator to perform completions without coupling to any specific
// SDK. Implementations must be safe for concurrent use and must propagate
// context cancellation promptly.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable indicates that no provider is configured — typically a
// missing API credential. The HTTP layer maps it to a configuration error
// (500), distinct from transport failures.
var ErrUnavailable = errors.New("llm: provider not configured")

// ProviderError wraps a transport- or API-level failure from an LLM backend.
// It is distinct from application logic errors; the HTTP layer maps it to a
// 502 upstream failure.
type ProviderError struct {
	// Backend names the provider implementation ("openai", "ollama", ...).
	Backend string

	// Err is the underlying SDK or transport error.
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: %s provider: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Model overrides the backend's default model for this request.
	// Empty means use the default the provider was constructed with.
	Model string

	// Messages is the ordered conversation. Order is semantically meaningful;
	// the last message is typically from the "user" role.
	Messages []Message

	// Tools is the set of tool definitions offered to the model. The model
	// may choose to call one or more of them in its response. Leave empty to
	// withhold tools entirely.
	Tools []ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero means use the backend default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the backend default.
	MaxTokens int
}

// CompletionResponse is the normalized result of a chat completion.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model, in the
	// order the provider returned them. The caller is responsible for
	// executing them and appending the results to the conversation.
	ToolCalls []ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Failures are wrapped in *ProviderError.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteText performs a legacy prompt-in/text-out completion, bypassing
	// the chat/tool protocol entirely. model may be empty to use the backend
	// default. Backends without a native completions API emulate it with a
	// single user message.
	CompleteText(ctx context.Context, model, prompt string) (string, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying default model supports. The result is assumed constant for
	// the lifetime of the Provider instance.
	Capabilities() ModelCapabilities
}
