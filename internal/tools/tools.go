// Package tools defines the [Tool] type shared by all built-in tool packages
// and the [Registry] that the chat orchestrator dispatches tool calls through.
//
// Each built-in tool package exports a constructor returning a [Tool] value
// carrying its LLM-facing schema next to the handler that executes it. The
// registry enforces that every advertised schema has a matching handler — the
// two can never drift because they travel together.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avdreher/parley/pkg/provider/llm"
)

// Tool represents a built-in tool ready for registration with the [Registry].
type Tool struct {
	// Definition is the tool's LLM-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Registry is an immutable name-keyed collection of tools. It is built once
// at process start and is safe for concurrent reads.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a Registry from the given tools. It fails fast on an
// empty tool name, a nil handler, or a duplicate name, so a schema without an
// executable handler can never be advertised to the provider.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(tools)),
		tools: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" {
			return nil, fmt.Errorf("tools: tool with empty name")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tools: tool %q has no handler", name)
		}
		if _, ok := r.tools[name]; ok {
			return nil, fmt.Errorf("tools: duplicate tool name %q", name)
		}
		r.order = append(r.order, name)
		r.tools[name] = t
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the LLM-facing schemas of all registered tools in
// registration order, ready for advertisement to the provider.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Execute dispatches a tool call and always returns JSON-serializable text,
// even on failure: the provider expects text content in the follow-up tool
// message, so handler errors and panics are converted to an in-band
// {"error": ...} payload rather than propagated.
func (r *Registry) Execute(ctx context.Context, name, args string) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ErrorPayload(fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	t, ok := r.tools[name]
	if !ok {
		return ErrorPayload(fmt.Sprintf("tool %s not found", name))
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		return ErrorPayload(err.Error())
	}
	return out
}

// ErrorPayload encodes msg as the in-band {"error": msg} JSON text used for
// all tool failures.
func ErrorPayload(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		// map[string]string cannot fail to marshal; keep a literal fallback
		// so the contract holds regardless.
		return `{"error":"internal error"}`
	}
	return string(b)
}
