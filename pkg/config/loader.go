package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	claudeDirName    = ".claude"
	settingsFileName = "settings.json"

	defaultMaxHandoffDepth = 3
	defaultAgentTimeout    = 5 * time.Minute
)

// Project is the loaded, defaulted configuration for one project root.
type Project struct {
	Root       string
	ClaudeDir  string
	Settings   Settings
	SourceHash string // hash of the raw settings file; empty when absent
}

// AgentTimeout returns the configured per-execute budget.
func (p *Project) AgentTimeout() time.Duration {
	if p.Settings.AgentTimeoutMs > 0 {
		return time.Duration(p.Settings.AgentTimeoutMs) * time.Millisecond
	}
	return defaultAgentTimeout
}

// HandoffDepth returns the configured handoff bound.
func (p *Project) HandoffDepth() int {
	if p.Settings.MaxHandoffDepth > 0 {
		return p.Settings.MaxHandoffDepth
	}
	return defaultMaxHandoffDepth
}

// AuditDir returns the audit log directory, defaulting under .claude.
func (p *Project) AuditDir() string {
	if p.Settings.Audit != nil && strings.TrimSpace(p.Settings.Audit.Dir) != "" {
		return p.Settings.Audit.Dir
	}
	return filepath.Join(p.ClaudeDir, "audit")
}

// Loader reads settings for a project root. A missing settings file is not an
// error; defaults apply.
type Loader struct {
	root string
}

// NewLoader creates a loader for the given project root.
func NewLoader(root string) (*Loader, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("config: project root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("config: resolve root: %w", err)
	}
	return &Loader{root: abs}, nil
}

// Root returns the absolute project root.
func (l *Loader) Root() string {
	return l.root
}

// SettingsPath returns the path the loader reads.
func (l *Loader) SettingsPath() string {
	return filepath.Join(l.root, claudeDirName, settingsFileName)
}

// Load reads and parses settings.json, applying defaults for absent files.
func (l *Loader) Load() (*Project, error) {
	project := &Project{
		Root:      l.root,
		ClaudeDir: filepath.Join(l.root, claudeDirName),
	}

	raw, err := os.ReadFile(l.SettingsPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return project, nil
		}
		return nil, fmt.Errorf("config: read settings: %w", err)
	}

	if err := json.Unmarshal(raw, &project.Settings); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", l.SettingsPath(), err)
	}
	sum := sha256.Sum256(raw)
	project.SourceHash = hex.EncodeToString(sum[:])
	return project, nil
}
