package hooks

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Handler processes one lifecycle emission. Handlers run sequentially in
// registration order; returning an error (or panicking) isolates the failure
// to this handler and escalates it through the error event.
type Handler func(ctx context.Context, hc *Context) error

type registration struct {
	fn Handler
	id uintptr
}

// Manager is an ordered multicast dispatcher for lifecycle events. One
// handler list exists per event kind, created at construction and mutated
// only by Register/Unregister. It is safe for concurrent use, but handler
// lists should not be mutated mid-emission by the handlers themselves.
type Manager struct {
	mu        sync.RWMutex
	handlers  map[Event][]registration
	sessionID string
	projectID string

	// now is swappable in tests for deterministic timestamps.
	now func() time.Time
}

// NewManager builds a dispatcher with empty handler lists for every event.
func NewManager() *Manager {
	m := &Manager{
		handlers: make(map[Event][]registration, len(Events())),
		now:      time.Now,
	}
	for _, evt := range Events() {
		m.handlers[evt] = nil
	}
	return m
}

// SetSessionID updates the session identifier used for subsequently built
// contexts. In-flight emissions keep the context they were constructed with.
func (m *Manager) SetSessionID(id string) {
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
}

// SetProjectID updates the project identifier for subsequent emissions.
func (m *Manager) SetProjectID(id string) {
	m.mu.Lock()
	m.projectID = id
	m.mu.Unlock()
}

// Register appends handler to the ordered list for evt. Duplicate
// registrations are allowed; each adds an independently removable entry.
func (m *Manager) Register(evt Event, handler Handler) error {
	if !evt.Valid() {
		return fmt.Errorf("hooks: unknown event %q", evt)
	}
	if handler == nil {
		return fmt.Errorf("hooks: handler is nil")
	}
	reg := registration{fn: handler, id: reflect.ValueOf(handler).Pointer()}
	m.mu.Lock()
	m.handlers[evt] = append(m.handlers[evt], reg)
	m.mu.Unlock()
	return nil
}

// Unregister removes the first entry for evt whose handler matches by
// function identity. Removing a never-registered handler is a no-op.
func (m *Manager) Unregister(evt Event, handler Handler) {
	if !evt.Valid() || handler == nil {
		return
	}
	id := reflect.ValueOf(handler).Pointer()
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.handlers[evt]
	for i, reg := range list {
		if reg.id == id {
			m.handlers[evt] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// HandlerCount reports how many handlers are currently registered for evt.
func (m *Manager) HandlerCount(evt Event) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[evt])
}

// Emit builds a fresh Context and invokes every handler registered for evt,
// strictly in registration order, waiting for each handler to finish before
// starting the next. Handler failures never propagate to the caller: every
// remaining handler still runs, then each collected failure triggers exactly
// one error event emission carrying ErrorPayload{OriginalEvent, Err}. When evt
// is already the error event, failures are swallowed instead to guarantee
// termination.
func (m *Manager) Emit(ctx context.Context, evt Event, data any) error {
	if !evt.Valid() {
		return fmt.Errorf("hooks: unknown event %q", evt)
	}
	m.mu.RLock()
	snapshot := append([]registration(nil), m.handlers[evt]...)
	hc := &Context{
		SessionID: m.sessionID,
		ProjectID: m.projectID,
		Event:     evt,
		Data:      data,
		Timestamp: m.now(),
	}
	m.mu.RUnlock()

	var failures []error
	for _, reg := range snapshot {
		if err := invoke(ctx, reg.fn, hc); err != nil {
			failures = append(failures, err)
		}
	}
	if evt != Error {
		for _, err := range failures {
			m.emitError(ctx, evt, err)
		}
	}
	return nil
}

// emitError dispatches the escalated error event. Failures inside error
// handlers are swallowed here rather than re-escalated, so a broken error
// handler cannot recurse.
func (m *Manager) emitError(ctx context.Context, original Event, cause error) {
	m.mu.RLock()
	snapshot := append([]registration(nil), m.handlers[Error]...)
	hc := &Context{
		SessionID: m.sessionID,
		ProjectID: m.projectID,
		Event:     Error,
		Data:      ErrorPayload{OriginalEvent: original, Err: cause},
		Timestamp: m.now(),
	}
	m.mu.RUnlock()

	for _, reg := range snapshot {
		_ = invoke(ctx, reg.fn, hc)
	}
}

// invoke runs a single handler, converting panics into plain errors so they
// follow the same isolation path as returned errors.
func invoke(ctx context.Context, fn Handler, hc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hooks: handler panic: %v", r)
		}
	}()
	return fn(ctx, hc)
}
