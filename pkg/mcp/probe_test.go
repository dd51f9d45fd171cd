package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/reflexhq/reflex/pkg/config"
)

func TestProbeMissingCommand(t *testing.T) {
	p := NewProber("reflex-test", "0.0.0")
	report := p.Probe(context.Background(), "empty", config.MCPServerConfig{})
	if report.OK {
		t.Fatal("probe without command should fail")
	}
	if report.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestProbeUnreachableServer(t *testing.T) {
	p := NewProber("reflex-test", "0.0.0", WithProbeTimeout(2*time.Second))
	report := p.Probe(context.Background(), "ghost", config.MCPServerConfig{
		Command: "/nonexistent/mcp-server",
	})
	if report.OK {
		t.Fatal("probe of nonexistent binary should fail")
	}
	if report.Name != "ghost" {
		t.Fatalf("name = %q", report.Name)
	}
}

func TestProbeAllSortsByName(t *testing.T) {
	p := NewProber("reflex-test", "0.0.0", WithProbeTimeout(time.Second))
	servers := map[string]config.MCPServerConfig{
		"zeta":  {},
		"alpha": {},
	}
	reports, err := p.ProbeAll(context.Background(), servers)
	if err != nil {
		t.Fatalf("ProbeAll: %v", err)
	}
	if len(reports) != 2 || reports[0].Name != "alpha" || reports[1].Name != "zeta" {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestProbeAllEmpty(t *testing.T) {
	p := NewProber("reflex-test", "0.0.0")
	if _, err := p.ProbeAll(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty server map")
	}
}
