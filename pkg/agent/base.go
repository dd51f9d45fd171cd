package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/reflexhq/reflex/pkg/skill"
)

// HandoffObserver receives agent-local handoff emissions. Delivery is
// fire-and-forget with no isolation guarantee: a panicking observer fails the
// emitting goroutine. This channel is intentionally weaker than the lifecycle
// dispatcher; it signals intent, it does not route.
type HandoffObserver func(from string, req HandoffRequest)

// Config declares a variant's identity and authority.
type Config struct {
	Name        string
	Description string
	Skills      []string
	MCPServers  []string
}

// Validate checks the declaration for structural problems.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("agent: name is required")
	}
	if c.Description == "" {
		return errors.New("agent: description is required")
	}
	return nil
}

// Base carries the declared identity plus the shared helpers every variant
// needs. Variants embed it and implement Execute; there is no deeper
// inheritance.
type Base struct {
	cfg      Config
	registry *skill.Registry
	skillSet map[string]struct{}

	mu        sync.RWMutex
	observers []HandoffObserver
}

// NewBase builds the shared agent core. The registry may be nil for agents
// that never invoke skills.
func NewBase(cfg Config, registry *skill.Registry) *Base {
	set := make(map[string]struct{}, len(cfg.Skills))
	for _, s := range cfg.Skills {
		set[s] = struct{}{}
	}
	return &Base{cfg: cfg, registry: registry, skillSet: set}
}

func (b *Base) Name() string         { return b.cfg.Name }
func (b *Base) Description() string  { return b.cfg.Description }
func (b *Base) Skills() []string     { return append([]string(nil), b.cfg.Skills...) }
func (b *Base) MCPServers() []string { return append([]string(nil), b.cfg.MCPServers...) }

// Authorized reports whether name is in the declared allow-list.
func (b *Base) Authorized(name string) bool {
	_, ok := b.skillSet[name]
	return ok
}

// InvokeSkill runs an authorized skill through the registry. The allow-list
// check happens before the registry is consulted, so an unauthorized call
// never reaches it; a declared-but-missing skill yields SkillNotFoundError.
// On success the registry's output is returned unmodified.
func (b *Base) InvokeSkill(ctx context.Context, name string, input any) (any, error) {
	if !b.Authorized(name) {
		return nil, &AuthorizationError{Agent: b.cfg.Name, Skill: name}
	}
	if b.registry == nil || !b.registry.Has(name) {
		return nil, &SkillNotFoundError{Skill: name}
	}
	out, err := b.registry.Invoke(ctx, name, input)
	if err != nil {
		if errors.Is(err, skill.ErrNotFound) {
			return nil, &SkillNotFoundError{Skill: name, Cause: err}
		}
		return nil, err
	}
	return out, nil
}

// ValidateSkills returns every declared skill the registry does not
// recognize. Intended as a startup/test-time diagnostic, not for use during
// task execution.
func (b *Base) ValidateSkills() []string {
	var stale []string
	for _, name := range b.cfg.Skills {
		if b.registry == nil || !b.registry.Has(name) {
			stale = append(stale, name)
		}
	}
	return stale
}

// OnHandoff subscribes an observer to this agent's handoff emissions.
func (b *Base) OnHandoff(obs HandoffObserver) {
	if obs == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, obs)
	b.mu.Unlock()
}

// RequestHandoff emits a handoff request on the agent-local channel. It does
// not block on routing and performs none itself; acting on the request is the
// orchestrator's decision.
func (b *Base) RequestHandoff(req HandoffRequest) {
	b.mu.RLock()
	observers := append([]HandoffObserver(nil), b.observers...)
	b.mu.RUnlock()
	for _, obs := range observers {
		obs(b.cfg.Name, req)
	}
}

// Success builds a successful result for this agent.
func (b *Base) Success(output any, opts ...ResultOption) Result {
	return Success(output, opts...)
}

// Failure builds a failed result for this agent.
func (b *Base) Failure(message string, output ...any) Result {
	return Failure(message, output...)
}
