package hooks

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell hooks require /bin/sh")
	}
}

func TestShellRunnerAllow(t *testing.T) {
	skipWithoutShell(t)
	r := NewShellRunner()
	hc := &Context{SessionID: "s1", ProjectID: "p1", Event: SessionStart, Timestamp: time.Now()}

	res, err := r.Run(context.Background(), ShellHook{Event: SessionStart, Command: "cat"}, hc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Decision != DecisionAllow || res.ExitCode != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	// cat echoes the stdin payload back; verify the envelope fields.
	for _, want := range []string{`"hook_event_name":"session_start"`, `"session_id":"s1"`, `"project_id":"p1"`} {
		if !strings.Contains(res.Stdout, want) {
			t.Fatalf("payload missing %s: %s", want, res.Stdout)
		}
	}
}

func TestShellRunnerBlock(t *testing.T) {
	skipWithoutShell(t)
	r := NewShellRunner()
	hc := &Context{Event: PostToolCall, Timestamp: time.Now()}

	res, err := r.Run(context.Background(), ShellHook{Event: PostToolCall, Command: "exit 1"}, hc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Decision != DecisionBlock || res.ExitCode != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestShellRunnerFailureExitCode(t *testing.T) {
	skipWithoutShell(t)
	r := NewShellRunner()
	hc := &Context{Event: PostToolCall, Timestamp: time.Now()}

	res, err := r.Run(context.Background(), ShellHook{Event: PostToolCall, Command: "echo nope >&2; exit 3"}, hc)
	if err == nil {
		t.Fatal("expected error for exit code 3")
	}
	if res.Decision != DecisionError || res.ExitCode != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestShellRunnerTimeout(t *testing.T) {
	skipWithoutShell(t)
	r := NewShellRunner()
	hc := &Context{Event: SessionEnd, Timestamp: time.Now()}

	_, err := r.Run(context.Background(), ShellHook{
		Event:   SessionEnd,
		Command: "sleep 5",
		Timeout: 50 * time.Millisecond,
	}, hc)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestShellRunnerReplyParsing(t *testing.T) {
	skipWithoutShell(t)
	r := NewShellRunner()
	hc := &Context{Event: FileUpload, Timestamp: time.Now()}

	res, err := r.Run(context.Background(), ShellHook{
		Event:   FileUpload,
		Command: `echo '{"note":"ok"}'`,
	}, hc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Reply == nil || res.Reply["note"] != "ok" {
		t.Fatalf("reply = %+v", res.Reply)
	}
}

func TestShellHandlerBlockSurfacesAsHandlerError(t *testing.T) {
	skipWithoutShell(t)
	m := NewManager()
	r := NewShellRunner()
	if err := m.Register(PostToolCall, r.Handler(ShellHook{
		Event:   PostToolCall,
		Command: "exit 1",
		Name:    "deny-all",
	})); err != nil {
		t.Fatalf("register: %v", err)
	}
	var escalated []ErrorPayload
	if err := m.Register(Error, func(_ context.Context, hc *Context) error {
		if p, ok := hc.Data.(ErrorPayload); ok {
			escalated = append(escalated, p)
		}
		return nil
	}); err != nil {
		t.Fatalf("register error handler: %v", err)
	}

	if err := m.Emit(context.Background(), PostToolCall, nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(escalated) != 1 {
		t.Fatalf("expected one escalation, got %d", len(escalated))
	}
	if !strings.Contains(escalated[0].Err.Error(), "deny-all") {
		t.Fatalf("escalation = %v", escalated[0].Err)
	}
}
