package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reflexhq/reflex/pkg/hooks"
)

// TracingHook mirrors lifecycle emissions into spans, one short span per
// event, so agent runs show up as a trace timeline.
type TracingHook struct {
	manager *Manager
}

// NewTracingHook wraps a manager.
func NewTracingHook(m *Manager) *TracingHook {
	return &TracingHook{manager: m}
}

// Handler returns the hook handler to register.
func (h *TracingHook) Handler() hooks.Handler {
	return func(ctx context.Context, hc *hooks.Context) error {
		_, span := h.manager.StartSpan(ctx, "hook."+string(hc.Event),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("hook.event", string(hc.Event)),
				attribute.String("session.id", hc.SessionID),
				attribute.String("project.id", hc.ProjectID),
			),
		)
		var err error
		if payload, ok := hc.Data.(hooks.ErrorPayload); ok {
			err = fmt.Errorf("%s: %w", payload.OriginalEvent, payload.Err)
		}
		EndSpan(span, err)
		return nil
	}
}

// Attach registers the tracing hook for every lifecycle event.
func (h *TracingHook) Attach(m *hooks.Manager) error {
	handler := h.Handler()
	for _, evt := range hooks.Events() {
		if err := m.Register(evt, handler); err != nil {
			return err
		}
	}
	return nil
}
