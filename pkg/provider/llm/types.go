package llm

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message. For "tool" messages this is
	// the JSON-encoded tool result.
	Content string

	// Name is the tool name when Role is "tool".
	Name string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this
	// message responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
// It is emitted by the provider, never constructed locally.
type ToolCall struct {
	// ID is the provider-assigned opaque identifier for this call.
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the raw JSON-encoded arguments string as the provider
	// returned it. It is not guaranteed to be valid JSON.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsLegacyCompletions indicates the backend still exposes the plain
	// prompt-in/text-out completions API used by basic mode.
	SupportsLegacyCompletions bool
}
