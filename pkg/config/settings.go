// Package config loads .claude/settings.json for the plugin and hot-reloads
// it on change.
package config

import (
	"encoding/json"
	"fmt"
)

// Settings models the plugin-relevant contents of .claude/settings.json.
type Settings struct {
	Env             map[string]string          `json:"env,omitempty"`             // Environment variables applied to hook commands.
	Model           string                     `json:"model,omitempty"`           // Override default model id.
	DefaultAgent    string                     `json:"defaultAgent,omitempty"`    // Agent handling tasks with no explicit preference.
	MaxHandoffDepth int                        `json:"maxHandoffDepth,omitempty"` // Bound on handoff chains (0 = default).
	AgentTimeoutMs  int                        `json:"agentTimeoutMs,omitempty"`  // Per-execute budget in milliseconds (0 = default).
	Hooks           *HooksConfig               `json:"hooks,omitempty"`           // Shell commands keyed by lifecycle event.
	DisableAllHooks *bool                      `json:"disableAllHooks,omitempty"` // Force-disable all configured hooks.
	Knowledge       *KnowledgeConfig           `json:"knowledge,omitempty"`       // Vector store endpoints.
	Audit           *AuditConfig               `json:"audit,omitempty"`           // Audit trail location and default state.
	Telemetry       *TelemetryConfig           `json:"telemetry,omitempty"`       // Trace export settings.
	MCPServers      map[string]MCPServerConfig `json:"mcpServers,omitempty"`      // MCP server definitions keyed by name.
}

// KnowledgeConfig wires the knowledge store.
type KnowledgeConfig struct {
	QdrantURL      string `json:"qdrantUrl,omitempty"`      // Qdrant base URL; empty selects the in-memory store.
	Collection     string `json:"collection,omitempty"`     // Default collection for ingest and recall.
	EmbeddingModel string `json:"embeddingModel,omitempty"` // OpenAI embedding model id.
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Dir     string `json:"dir,omitempty"`     // Log directory; empty means .claude/audit under the project.
	Enabled *bool  `json:"enabled,omitempty"` // Initial on/off state.
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Endpoint string `json:"endpoint,omitempty"` // OTLP HTTP endpoint; empty disables export.
	Insecure bool   `json:"insecure,omitempty"` // Plain HTTP instead of TLS.
}

// MCPServerConfig describes how to reach an MCP server.
type MCPServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// HooksConfig maps lifecycle events to shell commands. For each event the
// inner map is keyed by a matcher ("*" means any); the value is the command.
type HooksConfig struct {
	SessionStart    map[string]string `json:"session_start,omitempty"`
	SessionEnd      map[string]string `json:"session_end,omitempty"`
	PreAgentHandoff map[string]string `json:"pre_agent_handoff,omitempty"`
	PostToolCall    map[string]string `json:"post_tool_call,omitempty"`
	Error           map[string]string `json:"error,omitempty"`
	FileUpload      map[string]string `json:"file_upload,omitempty"`
}

// nestedHook is one hook definition in the array ("Claude Code") format.
type nestedHook struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// nestedHookEntry is one matcher entry in the array format.
type nestedHookEntry struct {
	Matcher string       `json:"matcher"`
	Hooks   []nestedHook `json:"hooks"`
}

// UnmarshalJSON accepts both supported shapes per event:
//  1. array format: {"session_start": [{"matcher": "", "hooks": [{"command": "..."}]}]}
//  2. simplified map format: {"session_start": {"*": "command"}}
func (h *HooksConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("hooks: invalid JSON: %w", err)
	}

	fields := []struct {
		name   string
		target *map[string]string
	}{
		{name: "session_start", target: &h.SessionStart},
		{name: "session_end", target: &h.SessionEnd},
		{name: "pre_agent_handoff", target: &h.PreAgentHandoff},
		{name: "post_tool_call", target: &h.PostToolCall},
		{name: "error", target: &h.Error},
		{name: "file_upload", target: &h.FileUpload},
	}
	for _, field := range fields {
		*field.target = make(map[string]string)
		fieldData, ok := raw[field.name]
		if !ok {
			continue
		}
		converted, err := parseHookField(fieldData)
		if err != nil {
			return fmt.Errorf("hooks: %s: %w", field.name, err)
		}
		*field.target = converted
	}
	return nil
}

func parseHookField(data json.RawMessage) (map[string]string, error) {
	var entries []nestedHookEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		result := make(map[string]string)
		for _, entry := range entries {
			key := entry.Matcher
			if key == "" {
				key = "*"
			}
			if len(entry.Hooks) > 0 {
				result[key] = entry.Hooks[0].Command
			}
		}
		return result, nil
	}

	var mapped map[string]string
	if err := json.Unmarshal(data, &mapped); err == nil {
		return mapped, nil
	}

	return nil, fmt.Errorf("invalid format: expected array or map")
}

// Commands returns the commands configured for an event name, in stable
// matcher order. Returns nil when hooks are disabled or none are configured.
func (s *Settings) Commands(event string) map[string]string {
	if s == nil || s.Hooks == nil {
		return nil
	}
	if s.DisableAllHooks != nil && *s.DisableAllHooks {
		return nil
	}
	switch event {
	case "session_start":
		return s.Hooks.SessionStart
	case "session_end":
		return s.Hooks.SessionEnd
	case "pre_agent_handoff":
		return s.Hooks.PreAgentHandoff
	case "post_tool_call":
		return s.Hooks.PostToolCall
	case "error":
		return s.Hooks.Error
	case "file_upload":
		return s.Hooks.FileUpload
	}
	return nil
}
