// Package orchestrator routes tasks to registered agents and follows their
// handoff suggestions under a bounded depth and per-run timeout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reflexhq/reflex/pkg/agent"
	"github.com/reflexhq/reflex/pkg/hooks"
)

const (
	defaultMaxHandoffDepth = 3
	defaultAgentTimeout    = 5 * time.Minute
)

// AgentNotFoundError reports a routing target with no registration.
type AgentNotFoundError struct {
	Agent string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("orchestrator: agent %q is not registered", e.Agent)
}

// Config tunes routing behaviour.
type Config struct {
	// DefaultAgent handles tasks when no preferred agent is named or the
	// preferred one is not registered.
	DefaultAgent string
	// MaxHandoffDepth bounds how many handoffs one RouteTask call follows.
	MaxHandoffDepth int
	// AgentTimeout bounds each individual Execute call.
	AgentTimeout time.Duration
	// SessionID stamps the agent context of every routed task. Replaceable
	// later via SetSessionID.
	SessionID string
	// Project describes the workspace agents operate on.
	Project agent.ProjectContext
}

// Orchestrator owns the agent registry and the routing loop. Hooks, when
// attached, observe agent transitions and failures.
type Orchestrator struct {
	mu     sync.RWMutex
	agents map[string]agent.Agent

	hooks           *hooks.Manager
	defaultAgent    string
	maxHandoffDepth int
	agentTimeout    time.Duration
	sessionID       string
	project         agent.ProjectContext
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithHooks attaches a hook manager; nil detaches.
func WithHooks(m *hooks.Manager) Option {
	return func(o *Orchestrator) {
		o.hooks = m
	}
}

// New creates an orchestrator.
func New(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents:          make(map[string]agent.Agent),
		defaultAgent:    cfg.DefaultAgent,
		maxHandoffDepth: cfg.MaxHandoffDepth,
		agentTimeout:    cfg.AgentTimeout,
		sessionID:       cfg.SessionID,
		project:         cfg.Project,
	}
	if o.maxHandoffDepth <= 0 {
		o.maxHandoffDepth = defaultMaxHandoffDepth
	}
	if o.agentTimeout <= 0 {
		o.agentTimeout = defaultAgentTimeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Register adds an agent under its Name. Re-registering a name replaces the
// previous agent.
func (o *Orchestrator) Register(a agent.Agent) error {
	if a == nil {
		return fmt.Errorf("orchestrator: agent is nil")
	}
	name := strings.TrimSpace(a.Name())
	if name == "" {
		return fmt.Errorf("orchestrator: agent name is empty")
	}
	o.mu.Lock()
	o.agents[name] = a
	o.mu.Unlock()
	return nil
}

// SetSessionID replaces the session identifier stamped on subsequent routed
// tasks. In-flight routes keep the context they started with.
func (o *Orchestrator) SetSessionID(id string) {
	o.mu.Lock()
	o.sessionID = id
	o.mu.Unlock()
}

// Agent returns the named agent, if registered.
func (o *Orchestrator) Agent(name string) (agent.Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[name]
	return a, ok
}

// ListAgents returns registered agent descriptors sorted by name.
func (o *Orchestrator) ListAgents() []agent.Info {
	o.mu.RLock()
	infos := make([]agent.Info, 0, len(o.agents))
	for _, a := range o.agents {
		infos = append(infos, agent.Info{
			Name:        a.Name(),
			Description: a.Description(),
			Skills:      a.Skills(),
		})
	}
	o.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RouteTask resolves the starting agent, runs it, and follows
// SuggestedNextAgent up to MaxHandoffDepth hops. The returned error is
// reserved for routing failures (no agent resolvable); agent-level failures,
// timeouts, and exhausted depth all come back as a failed Result.
func (o *Orchestrator) RouteTask(ctx context.Context, task string, preferred string) (agent.Result, error) {
	current, err := o.resolve(preferred)
	if err != nil {
		return agent.Result{}, err
	}

	o.mu.RLock()
	ac := agent.Context{Task: task, SessionID: o.sessionID, Project: o.project}
	o.mu.RUnlock()
	depth := 0
	var result agent.Result

	for {
		o.emitHandoff(ctx, current.Name(), ac.Task, depth)

		result = o.runAgent(ctx, current, ac)

		next := strings.TrimSpace(result.SuggestedNextAgent)
		if !result.Success || next == "" || next == current.Name() {
			return result, nil
		}

		if depth >= o.maxHandoffDepth {
			// The bound is the only cycle prevention; the last result comes
			// back annotated instead of following the suggestion.
			result.SuggestedNextAgent = ""
			result.Output = map[string]any{
				"output":         result.Output,
				"depth_exceeded": true,
				"note":           fmt.Sprintf("handoff depth %d exceeded; not following %q", o.maxHandoffDepth, next),
			}
			return result, nil
		}

		target, ok := o.Agent(next)
		if !ok {
			return agent.Failure(
				fmt.Sprintf("suggested agent %q is not registered", next),
				map[string]any{
					"error":       "unknown handoff target",
					"last_agent":  current.Name(),
					"next_agent":  next,
					"last_output": result.Output,
				},
			), nil
		}

		ac.Handoff = result.HandoffContext
		current = target
		depth++
	}
}

// runAgent executes one agent under the per-call timeout. Panics and escaping
// errors become failed results so one misbehaving agent cannot abort routing.
func (o *Orchestrator) runAgent(ctx context.Context, a agent.Agent, ac agent.Context) agent.Result {
	runCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	type outcome struct {
		result agent.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("agent %s panicked: %v", a.Name(), r)}
			}
		}()
		res, err := a.Execute(runCtx, ac)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			o.emitError(ctx, a.Name(), out.err)
			if errors.Is(out.err, context.DeadlineExceeded) {
				return agent.Failure(fmt.Sprintf("agent %s timed out after %s", a.Name(), o.agentTimeout))
			}
			return agent.Failure(fmt.Sprintf("agent %s failed: %v", a.Name(), out.err))
		}
		return out.result
	case <-runCtx.Done():
		err := runCtx.Err()
		o.emitError(ctx, a.Name(), err)
		if errors.Is(err, context.DeadlineExceeded) {
			return agent.Failure(fmt.Sprintf("agent %s timed out after %s", a.Name(), o.agentTimeout))
		}
		return agent.Failure(fmt.Sprintf("agent %s canceled: %v", a.Name(), err))
	}
}

// resolve picks the preferred agent when registered, otherwise the default.
func (o *Orchestrator) resolve(preferred string) (agent.Agent, error) {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" {
		if a, ok := o.Agent(preferred); ok {
			return a, nil
		}
	}
	if o.defaultAgent != "" {
		if a, ok := o.Agent(o.defaultAgent); ok {
			return a, nil
		}
	}
	if preferred != "" {
		return nil, &AgentNotFoundError{Agent: preferred}
	}
	return nil, &AgentNotFoundError{Agent: o.defaultAgent}
}

func (o *Orchestrator) emitHandoff(ctx context.Context, agentName, task string, depth int) {
	if o.hooks == nil {
		return
	}
	o.hooks.Emit(ctx, hooks.PreAgentHandoff, map[string]any{
		"agent": agentName,
		"task":  task,
		"depth": depth,
	})
}

func (o *Orchestrator) emitError(ctx context.Context, agentName string, err error) {
	if o.hooks == nil {
		return
	}
	o.hooks.Emit(ctx, hooks.Error, hooks.ErrorPayload{
		OriginalEvent: hooks.PreAgentHandoff,
		Err:           fmt.Errorf("agent %s: %w", agentName, err),
	})
}
