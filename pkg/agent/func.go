package agent

import (
	"context"
	"errors"

	"github.com/reflexhq/reflex/pkg/skill"
)

// ExecuteFunc is the behavior of a configured variant.
type ExecuteFunc func(ctx context.Context, b *Base, ac Context) (Result, error)

// funcAgent is a variant whose behavior is supplied as a closure. Most
// concrete agents (coder, reviewer, tester) differ only by configuration and
// this one function, so a closure-backed variant avoids a type per agent.
type funcAgent struct {
	*Base
	execute ExecuteFunc
}

// NewFuncAgent builds a variant from a declaration and an Execute closure.
func NewFuncAgent(cfg Config, registry *skill.Registry, execute ExecuteFunc) (Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if execute == nil {
		return nil, errors.New("agent: execute func is required")
	}
	return &funcAgent{Base: NewBase(cfg, registry), execute: execute}, nil
}

func (a *funcAgent) Execute(ctx context.Context, ac Context) (Result, error) {
	return a.execute(ctx, a.Base, ac)
}
