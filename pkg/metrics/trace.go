package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartFlush starts a span around one scheduler flush of a session.
func (m *Metrics) StartFlush(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return m.start(ctx, "billform.flush",
		attribute.String("billform.session_id", sessionID))
}

// StartRender starts a span around an HTML render.
func (m *Metrics) StartRender(ctx context.Context, page string) (context.Context, trace.Span) {
	return m.start(ctx, "billform.render",
		attribute.String("billform.page", page))
}

// StartExport starts a span around storing a rendered document.
func (m *Metrics) StartExport(ctx context.Context, store, name string) (context.Context, trace.Span) {
	return m.start(ctx, "billform.export",
		attribute.String("billform.store", store),
		attribute.String("billform.object", name))
}

func (m *Metrics) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, sets its status and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
