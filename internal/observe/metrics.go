// Package observe provides application-wide observability primitives for
// Parley: OpenTelemetry metrics, tracing helpers, and HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the /metrics endpoint. Tests should use [NewMetrics] with a
// private [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Parley metrics.
const meterName = "github.com/avdreher/parley"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ChatDuration tracks end-to-end chat orchestration latency. Use with
	// attribute.String("mode", "chat"|"basic") and attribute.Bool("used_tools", ...).
	ChatDuration metric.Float64Histogram

	// LLMDuration tracks a single provider round-trip. Use with
	// attribute.Int("round", 1|2).
	LLMDuration metric.Float64Histogram

	// ToolExecutionDuration tracks individual tool handler latency. Use with
	// attribute.String("tool", ...).
	ToolExecutionDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("status", "ok"|"error")
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...)
	ToolCalls metric.Int64Counter

	// Notifications counts insufficiency notification attempts. Use with:
	//   attribute.String("status", "sent"|"failed"|"skipped")
	Notifications metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks in-flight /chat requests.
	ActiveRequests metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round-trips, which dominate request latency.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChatDuration, err = m.Float64Histogram("parley.chat.duration",
		metric.WithDescription("End-to-end latency of one chat orchestration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.LLMDuration, err = m.Float64Histogram("parley.llm.duration",
		metric.WithDescription("Latency of a single LLM provider round-trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ToolExecutionDuration, err = m.Float64Histogram("parley.tool.duration",
		metric.WithDescription("Latency of a single tool handler execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("parley.provider.requests",
		metric.WithDescription("Number of LLM provider API calls."),
	); err != nil {
		return nil, err
	}

	if met.ToolCalls, err = m.Int64Counter("parley.tool.calls",
		metric.WithDescription("Number of tool invocations dispatched."),
	); err != nil {
		return nil, err
	}

	if met.Notifications, err = m.Int64Counter("parley.notifications",
		metric.WithDescription("Number of insufficiency notification attempts."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRequests, err = m.Int64UpDownCounter("parley.http.active_requests",
		metric.WithDescription("Number of in-flight chat requests."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
