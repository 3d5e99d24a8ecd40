// Package observe provides the observability primitives for shiftline:
// OpenTelemetry metrics, tracing helpers, structured logging enrichment, and
// the HTTP middleware that ties them together.
//
// Metrics go through the OpenTelemetry Metrics API with a Prometheus
// exporter bridge (see [InitProvider]) so they remain scrapable from the
// standard /metrics endpoint. Tests should build a [Metrics] from their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all shiftline metrics.
const meterName = "github.com/helpathands/shiftline"

// Metrics holds the metric instruments for the call pipeline. All fields are
// safe for concurrent use; the underlying OTel types synchronise themselves.
type Metrics struct {
	// STTDuration tracks the audio length of transcribed caller phrases.
	STTDuration metric.Float64Histogram

	// TurnDuration tracks one full conversation turn, from transcript in
	// to reply text out, including any rostering-site work.
	TurnDuration metric.Float64Histogram

	// TTSDuration tracks synthesis plus playback time per spoken reply.
	// Use with [StatusAttr].
	TTSDuration metric.Float64Histogram

	// HTTPRequestDuration tracks webhook request processing time. Use
	// with attributes "method" and "path".
	HTTPRequestDuration metric.Float64Histogram

	// CallsStarted counts call-started events by outcome. Use with
	// [StatusAttr].
	CallsStarted metric.Int64Counter

	// Utterances counts caller phrases handed to the conversation core.
	Utterances metric.Int64Counter

	// TurnErrors counts turns that failed unrecoverably and reset the
	// conversation.
	TurnErrors metric.Int64Counter

	// ActiveCalls tracks the number of live call sessions.
	ActiveCalls metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries (seconds) sized for a voice
// pipeline: sub-second speech events up to multi-second browser workflows.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// StatusAttr renders an error outcome as the conventional status attribute:
// "ok" for nil, "error" otherwise.
func StatusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "error")
	}
	return attribute.String("status", "ok")
}

// NewMetrics creates all instruments on the given provider. Returns an error
// if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = m.Int64Counter(name, metric.WithDescription(desc))
		return c
	}

	met.STTDuration = histogram("shiftline.stt.utterance.duration",
		"Audio length of transcribed caller phrases.")
	met.TurnDuration = histogram("shiftline.turn.duration",
		"Latency of one conversation turn, transcript in to reply out.")
	met.TTSDuration = histogram("shiftline.tts.duration",
		"Latency of speech synthesis and playback per reply.")
	met.HTTPRequestDuration = histogram("shiftline.http.request.duration",
		"Latency of webhook and status HTTP requests.")

	met.CallsStarted = counter("shiftline.calls.started",
		"Total call-started events by status.")
	met.Utterances = counter("shiftline.utterances",
		"Total caller utterances processed.")
	met.TurnErrors = counter("shiftline.turn.errors",
		"Total conversation turns that failed and reset the call context.")

	if err == nil {
		met.ActiveCalls, err = m.Int64UpDownCounter("shiftline.calls.active",
			metric.WithDescription("Number of live call sessions."))
	}
	if err != nil {
		return nil, err
	}
	return met, nil
}
