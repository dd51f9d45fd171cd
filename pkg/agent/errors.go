package agent

import "fmt"

// AuthorizationError reports a skill invocation outside the agent's declared
// allow-list. The check is local to the agent, independent of whatever
// authorization the registry performs.
type AuthorizationError struct {
	Agent string
	Skill string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("agent %s is not authorized to invoke skill %s", e.Agent, e.Skill)
}

// SkillNotFoundError reports a declared skill the registry does not serve.
type SkillNotFoundError struct {
	Skill string
	Cause error
}

func (e *SkillNotFoundError) Error() string {
	return fmt.Sprintf("skill %s not found", e.Skill)
}

func (e *SkillNotFoundError) Unwrap() error { return e.Cause }
