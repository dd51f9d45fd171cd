package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/reflexhq/reflex/pkg/hooks"
)

// Recorder bridges the hook dispatcher to the trail: registered for each
// lifecycle event, it persists one entry per emission.
type Recorder struct {
	trail *Trail
}

// NewRecorder wraps a trail.
func NewRecorder(trail *Trail) *Recorder {
	return &Recorder{trail: trail}
}

// Handler returns the hook handler that records emissions.
func (r *Recorder) Handler() hooks.Handler {
	return func(ctx context.Context, hc *hooks.Context) error {
		entry := Entry{
			ID:        uuid.NewString(),
			Event:     string(hc.Event),
			SessionID: hc.SessionID,
			ProjectID: hc.ProjectID,
			Timestamp: hc.Timestamp,
			Data:      hc.Data,
		}
		if err := r.trail.Record(entry); err != nil {
			return fmt.Errorf("record %s: %w", hc.Event, err)
		}
		return nil
	}
}

// Attach registers the recorder for every lifecycle event.
func (r *Recorder) Attach(m *hooks.Manager) error {
	handler := r.Handler()
	for _, evt := range hooks.Events() {
		if err := m.Register(evt, handler); err != nil {
			return err
		}
	}
	return nil
}
