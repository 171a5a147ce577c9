// Package weather provides the built-in mock weather lookup tool.
//
// Conditions come from a small fixed city table; this stands in for a real
// weather API. Unknown cities yield an in-band error payload so the provider
// always receives valid tool-result content.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
)

// report is one row of the fixed city table. Temperatures are Fahrenheit.
type report struct {
	temperature int
	condition   string
	humidity    string
}

// cityTable holds the mock conditions, keyed by lower-cased city name.
var cityTable = map[string]report{
	"san francisco": {72, "sunny", "65%"},
	"new york":      {65, "cloudy", "70%"},
	"london":        {58, "rainy", "85%"},
	"tokyo":         {68, "clear", "60%"},
	"paris":         {62, "partly cloudy", "75%"},
}

// args is the JSON-decoded input for the tool.
type args struct {
	// Location is the city name, e.g. "San Francisco".
	Location string `json:"location"`

	// Unit is "celsius" or "fahrenheit". Empty defaults to fahrenheit.
	Unit string `json:"unit"`
}

// result is the JSON-encoded output of the tool.
type result struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Unit        string `json:"unit"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
}

// Tool returns the weather lookup tool ready for registration.
func Tool() tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "get_current_weather",
			Description: "Get the current weather in a given location",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city name, e.g. San Francisco",
					},
					"unit": map[string]any{
						"type":        "string",
						"enum":        []string{"celsius", "fahrenheit"},
						"description": "The temperature unit",
					},
				},
				"required": []string{"location"},
			},
		},
		Handler: lookup,
	}
}

// lookup resolves the city in the fixed table, converting to celsius when
// requested. The fahrenheit→celsius conversion truncates toward zero,
// matching the payloads existing callers depend on.
func lookup(_ context.Context, rawArgs string) (string, error) {
	var a args
	if err := json.Unmarshal([]byte(rawArgs), &a); err != nil {
		return "", fmt.Errorf("invalid weather arguments: %v", err)
	}

	unit := strings.ToLower(a.Unit)
	if unit == "" {
		unit = "fahrenheit"
	}

	rep, ok := cityTable[strings.ToLower(a.Location)]
	if !ok {
		return tools.ErrorPayload("Weather data not available for " + a.Location), nil
	}

	temp := rep.temperature
	if unit == "celsius" {
		temp = (temp - 32) * 5 / 9
	}

	out, err := json.Marshal(result{
		Location:    a.Location,
		Temperature: strconv.Itoa(temp),
		Unit:        unit,
		Condition:   rep.condition,
		Humidity:    rep.humidity,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
