// Package notify delivers best-effort Pushover alerts when a chat reply looks
// uninformative.
//
// Everything here is fire-and-forget: detection failures, missing credentials,
// and delivery failures are logged and swallowed. Nothing in this package ever
// returns an error to the chat path or blocks a response beyond the bounded
// client timeout.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/avdreher/parley/internal/observe"
)

// DefaultEndpoint is the Pushover message API.
const DefaultEndpoint = "https://api.pushover.net/1/messages.json"

// defaultTimeout bounds a single delivery attempt.
const defaultTimeout = 10 * time.Second

// Excerpt limits for the notification body.
const (
	queryExcerptLen = 100
	replyExcerptLen = 200
)

// insufficiencyPhrases are matched case-insensitively against the reply text.
// Any match marks the reply as uninformative.
var insufficiencyPhrases = []string{
	"i don't have",
	"i don't know",
	"i cannot provide",
	"i'm not able to",
	"i don't have access",
	"i can't access",
	"i'm unable to",
	"no information",
	"not available",
	"don't have data",
	"cannot find",
	"not found",
	"weather data not available",
	"error",
	"sorry, i",
	"unfortunately",
	"i apologize",
}

// Config holds Pushover credentials and delivery settings.
type Config struct {
	// APIToken is the Pushover application token. Empty means not configured.
	APIToken string

	// UserKey is the Pushover user key. Empty means not configured.
	UserKey string

	// Endpoint overrides the Pushover API URL. Empty uses DefaultEndpoint.
	Endpoint string

	// Timeout bounds a single delivery attempt. Zero uses a 10s default.
	Timeout time.Duration

	// Metrics records notification outcomes. Optional.
	Metrics *observe.Metrics
}

// Pushover sends insufficiency alerts through the Pushover message API.
// Safe for concurrent use.
type Pushover struct {
	cfg    Config
	client *http.Client
}

// New creates a Pushover notifier from cfg. A notifier with missing
// credentials is still valid — it treats every send as "not configured" and
// skips it silently.
func New(cfg Config) *Pushover {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Pushover{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether both credentials are present.
func (p *Pushover) Configured() bool {
	return p.cfg.APIToken != "" && p.cfg.UserKey != ""
}

// Inspect checks the reply for lack-of-information phrases and, on a match,
// sends exactly one notification carrying truncated excerpts of the exchange.
// It never returns an error; failures are logged only.
func (p *Pushover) Inspect(userMessage, reply string) {
	if !Insufficient(reply) {
		return
	}

	if !p.Configured() {
		slog.Debug("pushover not configured, skipping insufficiency notification")
		p.record("skipped")
		return
	}

	msg := fmt.Sprintf("Query: %s\n\nResponse: %s",
		truncate(userMessage, queryExcerptLen),
		truncate(reply, replyExcerptLen),
	)

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.Send(ctx, "Chatbot: Insufficient Information", msg); err != nil {
		slog.Warn("insufficiency notification failed", "err", err)
		p.record("failed")
		return
	}
	slog.Debug("insufficiency notification sent")
	p.record("sent")
}

// record counts one notification outcome.
func (p *Pushover) record(status string) {
	if p.cfg.Metrics == nil {
		return
	}
	p.cfg.Metrics.Notifications.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// Send delivers one notification with the given title and message. Missing
// credentials are reported as nil after a debug log — an unconfigured
// notifier is a normal deployment state, not an error.
func (p *Pushover) Send(ctx context.Context, title, message string) error {
	if !p.Configured() {
		slog.Debug("pushover not configured, skipping notification")
		return nil
	}

	form := url.Values{
		"token":    {p.cfg.APIToken},
		"user":     {p.cfg.UserKey},
		"message":  {message},
		"title":    {title},
		"priority": {"0"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: pushover returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Insufficient reports whether reply contains any lack-of-information phrase.
func Insufficient(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range insufficiencyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// truncate caps s at n bytes. Phrase excerpts are ASCII-dominated; a byte cap
// matches the original payload limits.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
