package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
	"github.com/avdreher/parley/pkg/provider/llm/mock"
)

// testRegistry returns a registry with a single echo tool that wraps its raw
// arguments in a JSON payload.
func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "echo",
			Description: "echoes its arguments",
			Parameters:  map[string]any{"type": "object"},
		},
		Handler: func(_ context.Context, args string) (string, error) {
			return `{"echoed":` + args + `}`, nil
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = testRegistry(t)
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

// recordingNotifier signals through a channel so tests can wait for the
// fire-and-forget goroutine.
type recordingNotifier struct {
	got chan [2]string
}

func (n *recordingNotifier) Inspect(userMessage, reply string) {
	n.got <- [2]string{userMessage, reply}
}

func TestNewRequiresRegistry(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("New() without registry should fail")
	}
}

func TestChatNilProvider(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, Config{})
	_, err := o.Chat(context.Background(), Request{Message: "hi", UseTools: true})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("Chat() error = %v, want llm.ErrUnavailable", err)
	}
}

func TestChatNoToolCalls(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "  Hello there!  \n"}},
	}
	o := newOrchestrator(t, Config{Provider: p})

	resp, err := o.Chat(context.Background(), Request{Message: "hi", UseTools: true})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.Reply != "Hello there!" {
		t.Errorf("Reply = %q, want trimmed %q", resp.Reply, "Hello there!")
	}
	if resp.UsedTools {
		t.Error("UsedTools = true, want false when no tool round ran")
	}
	if len(p.CompleteCalls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(p.CompleteCalls))
	}

	req := p.CompleteCalls[0].Req
	if len(req.Messages) != 2 {
		t.Fatalf("first round messages = %d, want system + user", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != DefaultSystemPrompt {
		t.Errorf("first message = %+v, want the default system prompt", req.Messages[0])
	}
	if req.Messages[1].Role != "user" || req.Messages[1].Content != "hi" {
		t.Errorf("second message = %+v, want the user message", req.Messages[1])
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "echo" {
		t.Errorf("first round tools = %+v, want the registry schemas", req.Tools)
	}
}

func TestChatToolRound(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "echo", Arguments: `{"a":1}`},
				{ID: "call_2", Name: "echo", Arguments: `{"b":2}`},
			}},
			{Content: "Done with tools."},
		},
	}
	o := newOrchestrator(t, Config{Provider: p})

	resp, err := o.Chat(context.Background(), Request{Message: "use the tool", UseTools: true})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.Reply != "Done with tools." {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if !resp.UsedTools {
		t.Error("UsedTools = false, want true after a tool round")
	}
	if len(p.CompleteCalls) != 2 {
		t.Fatalf("provider calls = %d, want exactly 2", len(p.CompleteCalls))
	}

	second := p.CompleteCalls[1].Req
	if len(second.Tools) != 0 {
		t.Error("second round must not re-offer tools")
	}
	// system, user, assistant tool-call marker, then one tool message per call.
	if len(second.Messages) != 5 {
		t.Fatalf("second round messages = %d, want 5", len(second.Messages))
	}
	if second.Messages[2].Role != "assistant" || len(second.Messages[2].ToolCalls) != 2 {
		t.Errorf("third message = %+v, want assistant with tool-call markers", second.Messages[2])
	}

	// Tool results stay in provider order.
	first, secondTool := second.Messages[3], second.Messages[4]
	if first.Role != "tool" || first.ToolCallID != "call_1" {
		t.Errorf("first tool message = %+v, want id call_1", first)
	}
	if !strings.Contains(first.Content, `"a":1`) {
		t.Errorf("first tool content = %q, want echo of the call_1 args", first.Content)
	}
	if secondTool.ToolCallID != "call_2" || !strings.Contains(secondTool.Content, `"b":2`) {
		t.Errorf("second tool message = %+v, want id call_2 with its args", secondTool)
	}
}

func TestChatToolsDisabled(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "plain reply"}},
	}
	o := newOrchestrator(t, Config{Provider: p})

	resp, err := o.Chat(context.Background(), Request{Message: "hi", UseTools: false})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.UsedTools {
		t.Error("UsedTools = true with tools disabled")
	}
	if got := p.CompleteCalls[0].Req.Tools; len(got) != 0 {
		t.Errorf("tools offered = %+v, want none", got)
	}
}

func TestChatMalformedToolArguments(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{ToolCalls: []llm.ToolCall{
				{ID: "call_ok", Name: "echo", Arguments: `{"a":1}`},
				{ID: "call_bad", Name: "echo", Arguments: `{"a":`},
			}},
		},
	}
	o := newOrchestrator(t, Config{Provider: p})

	_, err := o.Chat(context.Background(), Request{Message: "go", UseTools: true})

	var argErr *ArgumentParseError
	if !errors.As(err, &argErr) {
		t.Fatalf("Chat() error = %v, want *ArgumentParseError", err)
	}
	if argErr.Tool != "echo" || argErr.ID != "call_bad" {
		t.Errorf("ArgumentParseError = %+v, want tool echo / id call_bad", argErr)
	}
	if len(p.CompleteCalls) != 1 {
		t.Errorf("provider calls = %d, want no second round after a parse failure", len(p.CompleteCalls))
	}
}

func TestChatBasicMode(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{TextResponse: " legacy completion \n"}
	o := newOrchestrator(t, Config{Provider: p})

	resp, err := o.Chat(context.Background(), Request{
		Message:  "hello",
		Model:    "text-davinci-003",
		UseBasic: true,
		UseTools: true, // ignored in basic mode
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.Reply != "legacy completion" {
		t.Errorf("Reply = %q, want trimmed text", resp.Reply)
	}
	if resp.UsedTools {
		t.Error("UsedTools = true in basic mode")
	}
	if len(p.CompleteCalls) != 0 {
		t.Errorf("Complete calls = %d, want 0 in basic mode", len(p.CompleteCalls))
	}
	if len(p.TextCalls) != 1 {
		t.Fatalf("CompleteText calls = %d, want 1", len(p.TextCalls))
	}

	call := p.TextCalls[0]
	if call.Model != "text-davinci-003" {
		t.Errorf("model = %q, want the request override", call.Model)
	}
	if call.Prompt != "User: hello\nAssistant:" {
		t.Errorf("prompt = %q, want the User/Assistant wrapper", call.Prompt)
	}
}

func TestChatModelOverride(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "ok"}},
	}
	o := newOrchestrator(t, Config{Provider: p})

	if _, err := o.Chat(context.Background(), Request{Message: "hi", Model: "gpt-4o", UseTools: true}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got := p.CompleteCalls[0].Req.Model; got != "gpt-4o" {
		t.Errorf("request model = %q, want %q", got, "gpt-4o")
	}
}

func TestChatCustomSystemPrompt(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "ok"}},
	}
	o := newOrchestrator(t, Config{Provider: p, SystemPrompt: "Speak like a pirate."})

	if _, err := o.Chat(context.Background(), Request{Message: "hi", UseTools: true}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got := p.CompleteCalls[0].Req.Messages[0].Content; got != "Speak like a pirate." {
		t.Errorf("system prompt = %q, want the configured override", got)
	}
}

func TestChatProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := &llm.ProviderError{Backend: "openai", Err: errors.New("rate limited")}
	p := &mock.Provider{CompleteErr: wantErr}
	o := newOrchestrator(t, Config{Provider: p})

	_, err := o.Chat(context.Background(), Request{Message: "hi", UseTools: true})
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Chat() error = %v, want *llm.ProviderError", err)
	}
}

func TestChatNotifiesAfterSuccess(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{got: make(chan [2]string, 1)}
	p := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{{Content: "I don't know."}},
	}
	o := newOrchestrator(t, Config{Provider: p, Notifier: n})

	resp, err := o.Chat(context.Background(), Request{Message: "tricky question", UseTools: true})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	select {
	case pair := <-n.got:
		if pair[0] != "tricky question" || pair[1] != resp.Reply {
			t.Errorf("notifier got (%q, %q), want the exchange", pair[0], pair[1])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never invoked")
	}
}

func TestChatNoNotificationOnError(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{got: make(chan [2]string, 1)}
	p := &mock.Provider{CompleteErr: errors.New("down")}
	o := newOrchestrator(t, Config{Provider: p, Notifier: n})

	if _, err := o.Chat(context.Background(), Request{Message: "hi", UseTools: true}); err == nil {
		t.Fatal("Chat() = nil error, want provider failure")
	}

	select {
	case pair := <-n.got:
		t.Errorf("notifier invoked on error path with %v", pair)
	case <-time.After(100 * time.Millisecond):
	}
}
