// Package clock provides the built-in current-time tool.
//
// The timezone argument is echoed back but never applied to the computed
// timestamp: the original service behaved this way and downstream callers may
// rely on the payload shape, so the gap is preserved rather than fixed.
package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// args is the JSON-decoded input for the tool.
type args struct {
	// Timezone is a label such as "UTC", "EST", or "PST". Echoed, not applied.
	Timezone string `json:"timezone"`
}

// result is the JSON-encoded output of the tool.
type result struct {
	Timezone  string `json:"timezone"`
	Time      string `json:"time"`
	Timestamp int64  `json:"timestamp"`
}

// Tool returns the current-time tool ready for registration.
func Tool() tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "get_current_time",
			Description: "Get the current date and time in a specific timezone",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timezone": map[string]any{
						"type":        "string",
						"description": "The timezone, e.g. UTC, EST, PST",
					},
				},
				"required": []string{},
			},
		},
		Handler: current,
	}
}

func current(_ context.Context, rawArgs string) (string, error) {
	var a args
	if err := json.Unmarshal([]byte(rawArgs), &a); err != nil {
		return "", fmt.Errorf("invalid time arguments: %v", err)
	}
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}

	now := timeNow()
	out, err := json.Marshal(result{
		Timezone:  a.Timezone,
		Time:      now.Format("2006-01-02 15:04:05"),
		Timestamp: now.Unix(),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
