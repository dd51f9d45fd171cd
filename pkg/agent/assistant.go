package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/reflexhq/reflex/pkg/knowledge"
	"github.com/reflexhq/reflex/pkg/skill"
)

const (
	defaultAssistantModel     = "claude-sonnet-4-20250514"
	defaultAssistantMaxTokens = 4096
	defaultRecallLimit        = 3
)

// AssistantConfig wires the model-backed default agent.
type AssistantConfig struct {
	Config
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	System    string

	// Knowledge and Collection enable retrieval-augmented prompts; both are
	// optional.
	Knowledge  knowledge.Store
	Collection string
}

// Assistant is the general-purpose default agent. Execute sends the task to
// the Anthropic Messages API, optionally prefixed with documents recalled
// from the knowledge store.
type Assistant struct {
	*Base
	client    anthropicsdk.Client
	model     anthropicsdk.Model
	maxTokens int
	system    string

	store      knowledge.Store
	collection string
}

// NewAssistant creates the model-backed agent.
func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	return newAssistant(cfg, nil)
}

// NewAssistantWithRegistry creates the model-backed agent bound to a skill
// registry, so markdown skills remain invocable through the usual
// authorization path.
func NewAssistantWithRegistry(cfg AssistantConfig, registry *skill.Registry) (*Assistant, error) {
	return newAssistant(cfg, registry)
}

func newAssistant(cfg AssistantConfig, registry *skill.Registry) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("agent: assistant api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = defaultAssistantModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAssistantMaxTokens
	}
	return &Assistant{
		Base:       NewBase(cfg.Config, registry),
		client:     anthropicsdk.NewClient(opts...),
		model:      anthropicsdk.Model(model),
		maxTokens:  maxTokens,
		system:     cfg.System,
		store:      cfg.Knowledge,
		collection: cfg.Collection,
	}, nil
}

// Execute routes the task through the model. Escaping errors become failed
// results so the orchestrator's routing loop keeps a consistent shape.
func (a *Assistant) Execute(ctx context.Context, ac Context) (Result, error) {
	prompt, err := a.buildPrompt(ctx, ac)
	if err != nil {
		// Retrieval is best effort; fall back to the bare task.
		prompt = ac.Task
	}

	params := anthropicsdk.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	}
	if trimmed := strings.TrimSpace(a.system); trimmed != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: trimmed}}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return a.Failure(fmt.Sprintf("anthropic call failed: %v", err)), nil
	}

	var parts []string
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}
	return a.Success(strings.Join(parts, "\n")), nil
}

func (a *Assistant) buildPrompt(ctx context.Context, ac Context) (string, error) {
	if a.store == nil || strings.TrimSpace(a.collection) == "" {
		return ac.Task, nil
	}
	docs, err := a.store.Query(ctx, a.collection, ac.Task, defaultRecallLimit)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return ac.Task, nil
	}
	var sb strings.Builder
	sb.WriteString("Relevant context:\n")
	for _, doc := range docs {
		sb.WriteString("- ")
		sb.WriteString(doc.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nTask: ")
	sb.WriteString(ac.Task)
	return sb.String(), nil
}
