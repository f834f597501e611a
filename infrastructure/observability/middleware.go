package observability

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// Middleware returns executor middleware that traces every tool call and
// records call counts and durations. Error envelopes count as failures even
// though the handler returns them without a Go error.
func Middleware(p *Provider) application.Middleware {
	tracer := p.Tracer()
	meter := p.Meter()

	calls, _ := meter.Int64Counter("opsforge.tool.calls",
		metric.WithDescription("Total tool calls by name and status"))
	duration, _ := meter.Float64Histogram("opsforge.tool.duration",
		metric.WithDescription("Tool call duration"),
		metric.WithUnit("s"))

	return func(name string, next tool.Handler) tool.Handler {
		return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			ctx, span := tracer.Start(ctx, "tool.call",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("tool.name", name)))
			defer span.End()

			start := time.Now()
			out, err := next(ctx, input)
			elapsed := time.Since(start).Seconds()

			status := envelopeStatus(out, err)
			attrs := metric.WithAttributes(
				attribute.String("tool.name", name),
				attribute.String("status", status),
			)
			calls.Add(ctx, 1, attrs)
			duration.Record(ctx, elapsed, attrs)

			if status != string(envelope.StatusSuccess) {
				span.SetStatus(codes.Error, status)
				if err != nil {
					span.RecordError(err)
				}
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return out, err
		}
	}
}

// envelopeStatus classifies the call outcome. A handler error takes
// precedence; otherwise the envelope's own status field decides.
func envelopeStatus(out json.RawMessage, err error) string {
	if err != nil {
		return string(envelope.StatusError)
	}
	var head struct {
		Status string `json:"status"`
	}
	if jsonErr := json.Unmarshal(out, &head); jsonErr != nil || head.Status == "" {
		return string(envelope.StatusError)
	}
	return head.Status
}
