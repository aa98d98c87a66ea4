package main

import (
	"context"

	"github.com/rs/zerolog/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the debug log.
type logExporter struct{}

var _ sdktrace.SpanExporter = logExporter{}

func (logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		events := make([]string, 0, len(span.Events()))
		for _, e := range span.Events() {
			events = append(events, e.Name)
		}
		log.Debug().
			Str("span", span.Name()).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Dur("duration", span.EndTime().Sub(span.StartTime())).
			Str("status", span.Status().Code.String()).
			Strs("events", events).
			Msg("trace")
	}
	return nil
}

func (logExporter) Shutdown(context.Context) error {
	return nil
}

func newTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(logExporter{}))
}
