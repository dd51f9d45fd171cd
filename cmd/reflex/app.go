package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/reflexhq/reflex/pkg/agent"
	"github.com/reflexhq/reflex/pkg/audit"
	"github.com/reflexhq/reflex/pkg/config"
	"github.com/reflexhq/reflex/pkg/hooks"
	"github.com/reflexhq/reflex/pkg/knowledge"
	"github.com/reflexhq/reflex/pkg/orchestrator"
	"github.com/reflexhq/reflex/pkg/skill"
	"github.com/reflexhq/reflex/pkg/telemetry"
)

const (
	appName    = "reflex"
	appVersion = "0.3.0"

	assistantAgentName = "assistant"
)

// app holds the assembled runtime for one CLI invocation.
type app struct {
	project      *config.Project
	hooks        *hooks.Manager
	orchestrator *orchestrator.Orchestrator
	registry     *skill.Registry
	trail        *audit.Trail
	telemetry    *telemetry.Manager
}

// buildApp wires config, hooks, skills, knowledge, audit, and the agent
// directory for a project root.
func buildApp(ctx context.Context, projectRoot string) (*app, error) {
	loader, err := config.NewLoader(projectRoot)
	if err != nil {
		return nil, err
	}
	project, err := loader.Load()
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	hm := hooks.NewManager()
	hm.SetSessionID(sessionID)
	hm.SetProjectID(filepath.Base(project.Root))

	trail, err := audit.Open(project.AuditDir())
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	if project.Settings.Audit != nil && project.Settings.Audit.Enabled != nil && *project.Settings.Audit.Enabled {
		if err := trail.Enable(); err != nil {
			return nil, err
		}
	}
	if err := audit.NewRecorder(trail).Attach(hm); err != nil {
		return nil, err
	}

	tm, err := buildTelemetry(ctx, project)
	if err != nil {
		return nil, err
	}
	if err := telemetry.NewTracingHook(tm).Attach(hm); err != nil {
		return nil, err
	}

	if err := attachShellHooks(hm, project); err != nil {
		return nil, err
	}

	registry, err := loadSkills(project)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(orchestrator.Config{
		DefaultAgent:    defaultAgentName(project),
		MaxHandoffDepth: project.HandoffDepth(),
		AgentTimeout:    project.AgentTimeout(),
		SessionID:       sessionID,
		Project: agent.ProjectContext{
			ProjectID: filepath.Base(project.Root),
			RootPath:  project.Root,
		},
	}, orchestrator.WithHooks(hm))

	assistant, err := buildAssistant(project, registry)
	if err != nil {
		return nil, err
	}
	if err := orch.Register(assistant); err != nil {
		return nil, err
	}

	return &app{
		project:      project,
		hooks:        hm,
		orchestrator: orch,
		registry:     registry,
		trail:        trail,
		telemetry:    tm,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close(ctx context.Context) error {
	var firstErr error
	if a.trail != nil {
		if err := a.trail.Close(); err != nil {
			firstErr = err
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func defaultAgentName(project *config.Project) string {
	if name := strings.TrimSpace(project.Settings.DefaultAgent); name != "" {
		return name
	}
	return assistantAgentName
}

func buildTelemetry(ctx context.Context, project *config.Project) (*telemetry.Manager, error) {
	cfg := telemetry.Config{
		ServiceName:    appName,
		ServiceVersion: appVersion,
	}
	if tc := project.Settings.Telemetry; tc != nil {
		cfg.Endpoint = tc.Endpoint
		cfg.Insecure = tc.Insecure
	}
	return telemetry.NewManager(ctx, cfg)
}

// attachShellHooks registers one handler per configured hook command.
func attachShellHooks(hm *hooks.Manager, project *config.Project) error {
	runner := hooks.NewShellRunner(hooks.WithShellWorkDir(project.Root))
	for _, evt := range hooks.Events() {
		commands := project.Settings.Commands(string(evt))
		for matcher, command := range commands {
			sh := hooks.ShellHook{
				Event:   evt,
				Command: command,
				Name:    matcher,
				Env:     project.Settings.Env,
			}
			if err := hm.Register(evt, runner.Handler(sh)); err != nil {
				return fmt.Errorf("register hook %s/%s: %w", evt, matcher, err)
			}
		}
	}
	return nil
}

func loadSkills(project *config.Project) (*skill.Registry, error) {
	registry, errs := skill.LoadFromFS(skill.LoaderOptions{ProjectRoot: project.Root})
	if len(errs) > 0 {
		return nil, fmt.Errorf("load skills: %w", errs[0])
	}
	return registry, nil
}

// buildAssistant prefers the model-backed agent; without an API key it falls
// back to an offline agent so introspection commands still work.
func buildAssistant(project *config.Project, registry *skill.Registry) (agent.Agent, error) {
	var skillNames []string
	for _, def := range registry.List() {
		skillNames = append(skillNames, def.Name)
	}
	cfg := agent.Config{
		Name:        assistantAgentName,
		Description: "general-purpose assistant for routed tasks",
		Skills:      skillNames,
	}

	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return agent.NewFuncAgent(cfg, registry, func(ctx context.Context, b *agent.Base, ac agent.Context) (agent.Result, error) {
			return b.Failure("no model configured: set ANTHROPIC_API_KEY to route tasks"), nil
		})
	}

	store, collection := buildKnowledge(project)
	return agent.NewAssistantWithRegistry(agent.AssistantConfig{
		Config:     cfg,
		APIKey:     apiKey,
		Model:      project.Settings.Model,
		Knowledge:  store,
		Collection: collection,
	}, registry)
}

// buildKnowledge wires the Qdrant-backed store when both the endpoint and an
// embedding key are configured; otherwise recall is disabled.
func buildKnowledge(project *config.Project) (knowledge.Store, string) {
	kc := project.Settings.Knowledge
	if kc == nil || strings.TrimSpace(kc.QdrantURL) == "" {
		return nil, ""
	}
	openaiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if openaiKey == "" {
		return nil, ""
	}
	model := kc.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}
	embedder, err := knowledge.NewOpenAIEmbedder(openaiKey, model)
	if err != nil {
		return nil, ""
	}
	store, err := knowledge.NewQdrantStore(kc.QdrantURL, embedder)
	if err != nil {
		return nil, ""
	}
	collection := kc.Collection
	if collection == "" {
		collection = "project_knowledge"
	}
	return store, collection
}
