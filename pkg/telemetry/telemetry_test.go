package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/reflexhq/reflex/pkg/hooks"
)

func TestNewManagerRequiresServiceName(t *testing.T) {
	if _, err := NewManager(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestNoopManagerWithoutEndpoint(t *testing.T) {
	m, err := NewManager(context.Background(), Config{ServiceName: "reflex-test"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, span := m.StartSpan(context.Background(), "test.span")
	if ctx == nil || span == nil {
		t.Fatal("no-op manager must still hand out spans")
	}
	EndSpan(span, errors.New("recorded but dropped"))
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestTracingHookHandlesAllEvents(t *testing.T) {
	m, err := NewManager(context.Background(), Config{ServiceName: "reflex-test"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	hm := hooks.NewManager()
	if err := NewTracingHook(m).Attach(hm); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	for _, evt := range hooks.Events() {
		var data any = map[string]any{"k": "v"}
		if evt == hooks.Error {
			data = hooks.ErrorPayload{OriginalEvent: hooks.SessionStart, Err: errors.New("boom")}
		}
		if err := hm.Emit(context.Background(), evt, data); err != nil {
			t.Fatalf("Emit(%s): %v", evt, err)
		}
	}
}
