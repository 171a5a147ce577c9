// Package chat implements the orchestration loop between an inbound chat
// request, an LLM provider, and the local tool registry.
//
// One orchestration is at most two provider rounds: the first call offers the
// tool schemas; if the model requests tool invocations they are executed
// locally and their results fed back in a second call that never re-offers
// tools. Capping at two rounds guarantees termination and bounds latency and
// cost per request at the expense of multi-step tool chains. Tool calls are
// always resolved before a final textual reply is returned, and the reply is
// never tool-call metadata.
//
// No conversation state is retained across calls — each request is an
// independent one-turn conversation.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/avdreher/parley/internal/observe"
	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
)

// DefaultSystemPrompt is the fixed system message opening every conversation
// unless overridden in configuration.
const DefaultSystemPrompt = "You are a helpful assistant with access to various tools. Use them when needed to provide accurate information."

// Notifier inspects a finished exchange for uninformative replies.
// Implementations must never block for long and never fail loudly; the
// orchestrator invokes them fire-and-forget.
type Notifier interface {
	Inspect(userMessage, reply string)
}

// Request is one inbound chat message with its options.
type Request struct {
	// Message is the user's chat message. Must not be empty.
	Message string

	// Model optionally overrides the provider's default model.
	Model string

	// UseTools controls whether tool schemas are offered on the first round.
	UseTools bool

	// UseBasic selects the legacy single-prompt completion path, bypassing
	// the chat/tool protocol entirely. Takes precedence over UseTools.
	UseBasic bool
}

// Response is the outcome of one orchestration.
type Response struct {
	// Reply is the assistant's final text, whitespace-trimmed.
	Reply string

	// UsedTools is true iff a tool round was executed.
	UsedTools bool
}

// Config holds the orchestrator's collaborators.
type Config struct {
	// Provider is the LLM backend. May be nil when no credential is
	// configured; every chat then fails with llm.ErrUnavailable.
	Provider llm.Provider

	// Registry holds the executable tools and their schemas. Required.
	Registry *tools.Registry

	// Notifier receives (message, reply) pairs after each completed
	// orchestration. Optional.
	Notifier Notifier

	// Metrics records orchestration telemetry. Optional.
	Metrics *observe.Metrics

	// SystemPrompt overrides DefaultSystemPrompt. Optional.
	SystemPrompt string

	// Temperature is passed through to the provider. Zero means backend default.
	Temperature float64

	// MaxTokens caps completion length. Zero means backend default.
	MaxTokens int
}

// Orchestrator mediates between chat requests, the LLM provider, and the tool
// registry. Safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	provider     llm.Provider
	registry     *tools.Registry
	notifier     Notifier
	metrics      *observe.Metrics
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("chat: registry must not be nil")
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &Orchestrator{
		provider:     cfg.Provider,
		registry:     cfg.Registry,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		systemPrompt: prompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Chat runs one orchestration and returns the final reply.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	if o.provider == nil {
		return nil, llm.ErrUnavailable
	}

	mode := "chat"
	if req.UseBasic {
		mode = "basic"
	}

	ctx, span := observe.StartSpan(ctx, "chat.orchestrate")
	defer span.End()
	start := time.Now()

	resp, err := o.run(ctx, req)

	if o.metrics != nil {
		usedTools := resp != nil && resp.UsedTools
		o.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("mode", mode),
				attribute.Bool("used_tools", usedTools),
			),
		)
	}
	if err != nil {
		return nil, err
	}

	if o.notifier != nil {
		// Fire-and-forget: notification delivery must never delay or fail
		// the response.
		go o.notifier.Inspect(req.Message, resp.Reply)
	}
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*Response, error) {
	if req.UseBasic {
		return o.runBasic(ctx, req)
	}

	messages := []llm.Message{
		{Role: "system", Content: o.systemPrompt},
		{Role: "user", Content: req.Message},
	}

	first := llm.CompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	if req.UseTools {
		first.Tools = o.registry.Definitions()
	}

	resp, err := o.complete(ctx, first, 1)
	if err != nil {
		return nil, err
	}

	if len(resp.ToolCalls) == 0 {
		return &Response{Reply: strings.TrimSpace(resp.Content)}, nil
	}

	observe.Logger(ctx).Debug("model requested tool calls", "count", len(resp.ToolCalls))

	// The assistant message with its tool-call markers must precede the
	// tool-result messages so the provider can correlate them with this turn.
	messages = append(messages, llm.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	toolMessages, err := o.executeToolCalls(ctx, resp.ToolCalls)
	if err != nil {
		return nil, err
	}
	messages = append(messages, toolMessages...)

	// The second round never re-offers tools; that is what bounds the loop.
	second, err := o.complete(ctx, llm.CompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}, 2)
	if err != nil {
		return nil, err
	}

	return &Response{Reply: strings.TrimSpace(second.Content), UsedTools: true}, nil
}

// runBasic handles the legacy single-prompt completion mode. No tool
// integration exists in this mode regardless of the UseTools flag.
func (o *Orchestrator) runBasic(ctx context.Context, req Request) (*Response, error) {
	prompt := fmt.Sprintf("User: %s\nAssistant:", req.Message)

	start := time.Now()
	text, err := o.provider.CompleteText(ctx, req.Model, prompt)
	o.recordProviderCall(ctx, time.Since(start), 1, err)
	if err != nil {
		return nil, err
	}

	return &Response{Reply: strings.TrimSpace(text)}, nil
}

// executeToolCalls runs the requested invocations and returns one tool-role
// message per call, in the order the provider returned them.
//
// All argument payloads are validated up front: a single malformed one fails
// the whole request before any handler runs. Execution itself is concurrent —
// the invocations are independent — with each result written to its
// provider-order slot so the second round's message list is deterministic.
func (o *Orchestrator) executeToolCalls(ctx context.Context, calls []llm.ToolCall) ([]llm.Message, error) {
	for _, tc := range calls {
		var probe any
		if err := json.Unmarshal([]byte(tc.Arguments), &probe); err != nil {
			return nil, &ArgumentParseError{Tool: tc.Name, ID: tc.ID, Err: err}
		}
	}

	results := make([]llm.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range calls {
		g.Go(func() error {
			start := time.Now()
			content := o.registry.Execute(gctx, tc.Name, tc.Arguments)
			if o.metrics != nil {
				o.metrics.ToolCalls.Add(gctx, 1,
					metric.WithAttributes(attribute.String("tool", tc.Name)))
				o.metrics.ToolExecutionDuration.Record(gctx, time.Since(start).Seconds(),
					metric.WithAttributes(attribute.String("tool", tc.Name)))
			}
			results[i] = llm.Message{
				Role:       "tool",
				Name:       tc.Name,
				ToolCallID: tc.ID,
				Content:    content,
			}
			return nil
		})
	}
	// Handlers cannot fail — Execute converts every failure to in-band
	// content — so Wait only reflects context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) complete(ctx context.Context, req llm.CompletionRequest, round int) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := o.provider.Complete(ctx, req)
	o.recordProviderCall(ctx, time.Since(start), round, err)
	return resp, err
}

func (o *Orchestrator) recordProviderCall(ctx context.Context, d time.Duration, round int, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.LLMDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.Int("round", round)))
	o.metrics.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}
