package chat

import "fmt"

// ArgumentParseError indicates the provider returned a tool call whose
// arguments are not valid JSON. This is a provider-contract violation, not a
// local bug: the whole request fails rather than skipping the call, and the
// HTTP layer maps it to a 502 upstream error.
type ArgumentParseError struct {
	// Tool is the name of the tool the provider tried to call.
	Tool string

	// ID is the provider-assigned tool call identifier.
	ID string

	// Err is the underlying JSON decode error.
	Err error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("chat: tool call %s (%s) has malformed arguments: %v", e.ID, e.Tool, e.Err)
}

func (e *ArgumentParseError) Unwrap() error { return e.Err }
