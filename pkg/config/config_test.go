package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, claudeDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFileName), []byte(content), 0o644))
}

func TestLoadMissingSettingsUsesDefaults(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	require.NoError(t, err)

	project, err := loader.Load()
	require.NoError(t, err)
	require.Empty(t, project.SourceHash, "missing file should leave hash empty")
	require.Equal(t, defaultMaxHandoffDepth, project.HandoffDepth())
	require.Equal(t, defaultAgentTimeout, project.AgentTimeout())
}

func TestLoadSettings(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, `{
		"defaultAgent": "assistant",
		"maxHandoffDepth": 5,
		"agentTimeoutMs": 1500,
		"knowledge": {"qdrantUrl": "http://localhost:6333", "collection": "notes"}
	}`)

	loader, err := NewLoader(root)
	require.NoError(t, err)

	project, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "assistant", project.Settings.DefaultAgent)
	require.Equal(t, 5, project.HandoffDepth())
	require.Equal(t, 1500*time.Millisecond, project.AgentTimeout())
	require.Equal(t, "notes", project.Settings.Knowledge.Collection)
	require.NotEmpty(t, project.SourceHash)
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, `{not json`)

	loader, err := NewLoader(root)
	require.NoError(t, err)
	_, err = loader.Load()
	require.Error(t, err)
}

func TestHooksConfigMapFormat(t *testing.T) {
	var h HooksConfig
	err := json.Unmarshal([]byte(`{"session_start": {"*": "echo hi"}, "error": {"*": "notify.sh"}}`), &h)
	require.NoError(t, err)
	require.Equal(t, "echo hi", h.SessionStart["*"])
	require.Equal(t, "notify.sh", h.Error["*"])
	require.NotNil(t, h.PostToolCall, "absent events should yield empty non-nil maps")
}

func TestHooksConfigArrayFormat(t *testing.T) {
	var h HooksConfig
	err := json.Unmarshal([]byte(`{
		"post_tool_call": [
			{"matcher": "Bash", "hooks": [{"type": "command", "command": "audit.sh"}]},
			{"matcher": "", "hooks": [{"type": "command", "command": "log.sh"}]}
		]
	}`), &h)
	require.NoError(t, err)
	require.Equal(t, "audit.sh", h.PostToolCall["Bash"])
	require.Equal(t, "log.sh", h.PostToolCall["*"], "empty matcher should map to *")
}

func TestHooksConfigRejectsScalar(t *testing.T) {
	var h HooksConfig
	err := json.Unmarshal([]byte(`{"session_start": "echo hi"}`), &h)
	require.Error(t, err)
}

func TestSettingsCommandsHonorsDisableAll(t *testing.T) {
	disabled := true
	s := Settings{
		Hooks:           &HooksConfig{SessionStart: map[string]string{"*": "echo hi"}},
		DisableAllHooks: &disabled,
	}
	require.Nil(t, s.Commands("session_start"), "commands should be nil when disabled")

	s.DisableAllHooks = nil
	require.Equal(t, "echo hi", s.Commands("session_start")["*"])
}

func TestWatcherReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, `{"defaultAgent": "one"}`)

	loader, err := NewLoader(root)
	require.NoError(t, err)

	changes := make(chan *Project, 4)
	w, err := NewWatcher(loader,
		WithDebounce(20*time.Millisecond),
		OnChange(func(p *Project) { changes <- p }),
	)
	require.NoError(t, err)

	_, err = w.Start()
	require.NoError(t, err)
	defer w.Close()

	writeSettings(t, root, `{"defaultAgent": "two"}`)

	select {
	case p := <-changes:
		require.Equal(t, "two", p.Settings.DefaultAgent)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
