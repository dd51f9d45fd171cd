// Package agent defines the capability contract every task handler in the
// runtime implements, together with the shared helpers variants compose:
// authorization-checked skill invocation, handoff signaling, and result
// builders.
package agent

import "context"

// Agent is the polymorphic capability over one operation. Variants differ
// only by configuration (name, skill allow-list, description) and Execute
// behavior.
type Agent interface {
	Name() string
	Description() string
	Skills() []string
	MCPServers() []string
	Execute(ctx context.Context, ac Context) (Result, error)
}

// ProjectContext describes the project a task runs against.
type ProjectContext struct {
	ProjectID  string   `json:"project_id"`
	RootPath   string   `json:"root_path"`
	Languages  []string `json:"languages,omitempty"`
	Frameworks []string `json:"frameworks,omitempty"`
}

// Context is the read-only input to one Execute invocation. Handoff carries
// the previous agent's HandoffContext when the orchestrator followed a
// suggestion; it is nil for the first agent in a chain.
type Context struct {
	Task      string         `json:"task"`
	SessionID string         `json:"session_id"`
	Project   ProjectContext `json:"project"`
	Handoff   any            `json:"handoff,omitempty"`
}

// Artifact is a named output attached to a result.
type Artifact struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Result is the terminal outcome of one Execute invocation. SuggestedNextAgent
// and HandoffContext are advisory; the orchestrator decides whether to act on
// them.
type Result struct {
	Success            bool       `json:"success"`
	Output             any        `json:"output"`
	Artifacts          []Artifact `json:"artifacts,omitempty"`
	SuggestedNextAgent string     `json:"suggested_next_agent,omitempty"`
	HandoffContext     any        `json:"handoff_context,omitempty"`
}

// HandoffRequest asks the orchestrator to transfer further handling to
// another named agent. It exists only as an emission payload.
type HandoffRequest struct {
	TargetAgent string `json:"target_agent"`
	Reason      string `json:"reason"`
	Context     any    `json:"context,omitempty"`
}

// ResultOption customizes a success result.
type ResultOption func(*Result)

// WithArtifacts attaches ordered artifacts to the result.
func WithArtifacts(artifacts ...Artifact) ResultOption {
	return func(r *Result) {
		r.Artifacts = append(r.Artifacts, artifacts...)
	}
}

// WithNextAgent suggests a handoff target for the orchestrator to follow.
// An optional handoff context travels with the suggestion.
func WithNextAgent(name string, handoffContext ...any) ResultOption {
	return func(r *Result) {
		r.SuggestedNextAgent = name
		if len(handoffContext) > 0 {
			r.HandoffContext = handoffContext[0]
		}
	}
}

// Success builds a successful result, applying only the supplied options.
func Success(output any, opts ...ResultOption) Result {
	res := Result{Success: true, Output: output}
	for _, opt := range opts {
		opt(&res)
	}
	return res
}

// Failure builds a failed result. When output is omitted the message becomes
// the machine-readable error payload; a supplied output is used verbatim and
// the message serves side-channel reporting only. Every failed result carries
// a human-readable error description.
func Failure(message string, output ...any) Result {
	if len(output) > 0 && output[0] != nil {
		return Result{Success: false, Output: output[0]}
	}
	return Result{Success: false, Output: map[string]any{"error": message}}
}

// Info is the introspection view of a registered agent.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Skills      []string `json:"skills,omitempty"`
}
