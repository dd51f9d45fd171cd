package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// defaultShellTimeout bounds a single hook process run.
const defaultShellTimeout = 30 * time.Second

// Decision captures the outcome encoded in the hook process exit code.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionBlock
	DecisionError
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionBlock:
		return "block"
	default:
		return "error"
	}
}

// ShellHook describes a shell command bound to a lifecycle event. The command
// receives the serialized hook context as a JSON document on stdin and may
// reply with a JSON document on stdout; exit code 0 allows, 1 blocks.
type ShellHook struct {
	Event   Event
	Command string
	Timeout time.Duration
	Env     map[string]string
	Name    string // optional label for debugging
}

// ShellResult captures the full outcome of one hook process run.
type ShellResult struct {
	Decision Decision
	ExitCode int
	Stdout   string
	Stderr   string
	Reply    map[string]any
}

// ShellRunner executes ShellHooks and adapts them to the Handler signature so
// external hook scripts participate in Manager dispatch like any in-process
// handler.
type ShellRunner struct {
	timeout time.Duration
	workDir string
}

// ShellOption configures optional runner behaviour.
type ShellOption func(*ShellRunner)

// WithShellTimeout sets the default per-run budget. Zero keeps the default.
func WithShellTimeout(d time.Duration) ShellOption {
	return func(r *ShellRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithShellWorkDir sets the working directory for hook commands.
func WithShellWorkDir(dir string) ShellOption {
	return func(r *ShellRunner) {
		r.workDir = dir
	}
}

// NewShellRunner constructs a runner for external hook processes.
func NewShellRunner(opts ...ShellOption) *ShellRunner {
	r := &ShellRunner{timeout: defaultShellTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handler wraps hook into a Manager-compatible handler. A blocked or failed
// run surfaces as a handler error, which the Manager isolates and escalates.
func (r *ShellRunner) Handler(hook ShellHook) Handler {
	return func(ctx context.Context, hc *Context) error {
		res, err := r.Run(ctx, hook, hc)
		if err != nil {
			return err
		}
		if res.Decision == DecisionBlock {
			return fmt.Errorf("hooks: %s blocked by %s", hc.Event, hookLabel(hook))
		}
		return nil
	}
}

// Run executes the hook command once with the serialized context on stdin.
func (r *ShellRunner) Run(ctx context.Context, hook ShellHook, hc *Context) (ShellResult, error) {
	var res ShellResult

	cmdStr := strings.TrimSpace(hook.Command)
	if cmdStr == "" {
		return res, errors.New("hooks: missing command")
	}
	payload, err := buildShellPayload(hc)
	if err != nil {
		return res, err
	}

	deadline := hook.Timeout
	if deadline <= 0 {
		deadline = r.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", cmdStr)
	cmd.Env = mergeEnv(os.Environ(), hook.Env)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = bytes.NewReader(payload)

	runErr := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("hooks: %s timed out after %s: %s", hookLabel(hook), deadline, res.Stderr)
	}

	decision, exitCode, failure := classifyExit(runErr)
	res.Decision = decision
	res.ExitCode = exitCode
	if failure != nil {
		return res, fmt.Errorf("hooks: %s: %w; stderr: %s", hookLabel(hook), failure, res.Stderr)
	}

	if trimmed := strings.TrimSpace(res.Stdout); trimmed != "" {
		var reply map[string]any
		if err := json.Unmarshal([]byte(trimmed), &reply); err == nil {
			res.Reply = reply
		}
	}
	return res, nil
}

func buildShellPayload(hc *Context) ([]byte, error) {
	envelope := map[string]any{
		"hook_event_name": hc.Event,
		"timestamp":       hc.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if hc.SessionID != "" {
		envelope["session_id"] = hc.SessionID
	}
	if hc.ProjectID != "" {
		envelope["project_id"] = hc.ProjectID
	}
	if hc.Data != nil {
		envelope["data"] = hc.Data
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("hooks: marshal payload: %w", err)
	}
	return data, nil
}

func classifyExit(runErr error) (Decision, int, error) {
	if runErr == nil {
		return DecisionAllow, 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		code := exitErr.ExitCode()
		switch code {
		case 0:
			return DecisionAllow, code, nil
		case 1:
			return DecisionBlock, code, nil
		default:
			return DecisionError, code, fmt.Errorf("command exited with code %d", code)
		}
	}
	return DecisionError, -1, runErr
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := append([]string(nil), base...)
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func hookLabel(hook ShellHook) string {
	if hook.Name != "" {
		return hook.Name
	}
	return "shell hook"
}
