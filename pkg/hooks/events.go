package hooks

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event enumerates the hookable lifecycle events. Keeping the list small and
// explicit prevents accidental proliferation of loosely defined event names.
type Event string

const (
	SessionStart    Event = "session_start"
	SessionEnd      Event = "session_end"
	PreAgentHandoff Event = "pre_agent_handoff"
	PostToolCall    Event = "post_tool_call"
	Error           Event = "error"
	FileUpload      Event = "file_upload"
)

// Events lists every known event kind in declaration order. The manager
// creates one handler list per entry at construction time.
func Events() []Event {
	return []Event{SessionStart, SessionEnd, PreAgentHandoff, PostToolCall, Error, FileUpload}
}

// Valid reports whether e belongs to the closed event set.
func (e Event) Valid() bool {
	switch e {
	case SessionStart, SessionEnd, PreAgentHandoff, PostToolCall, Error, FileUpload:
		return true
	default:
		return false
	}
}

// Context carries everything a handler may inspect for one emission. It is
// built fresh per Emit call and must not be mutated by handlers.
type Context struct {
	SessionID string    `json:"session_id"`
	ProjectID string    `json:"project_id"`
	Event     Event     `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the data attached to every escalated error event.
type ErrorPayload struct {
	OriginalEvent Event
	Err           error
}

func (p ErrorPayload) String() string {
	return fmt.Sprintf("%s: %v", p.OriginalEvent, p.Err)
}

// MarshalJSON flattens Err to its message so consumers (audit entries, JSON
// output) see the error text instead of an empty object.
func (p ErrorPayload) MarshalJSON() ([]byte, error) {
	var msg string
	if p.Err != nil {
		msg = p.Err.Error()
	}
	return json.Marshal(struct {
		OriginalEvent Event  `json:"original_event"`
		Error         string `json:"error"`
	}{p.OriginalEvent, msg})
}
