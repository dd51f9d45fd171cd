// Package mcp probes the MCP servers agents declare affinity for, reporting
// reachability and the tools each server exposes.
package mcp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reflexhq/reflex/pkg/config"
)

const defaultProbeTimeout = 10 * time.Second

// Report is the outcome of probing one server.
type Report struct {
	Name  string   `json:"name"`
	OK    bool     `json:"ok"`
	Tools []string `json:"tools,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Prober connects to configured stdio MCP servers.
type Prober struct {
	timeout time.Duration
	impl    *sdk.Implementation
}

// ProberOption customizes the prober.
type ProberOption func(*Prober)

// WithProbeTimeout overrides the per-server budget.
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewProber creates a prober identifying itself with the given client name
// and version.
func NewProber(name, version string, opts ...ProberOption) *Prober {
	p := &Prober{
		timeout: defaultProbeTimeout,
		impl:    &sdk.Implementation{Name: name, Version: version},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Probe connects to one server and lists its tools.
func (p *Prober) Probe(ctx context.Context, name string, server config.MCPServerConfig) Report {
	report := Report{Name: name}
	if strings.TrimSpace(server.Command) == "" {
		report.Error = "no command configured"
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.Command(server.Command, server.Args...)
	cmd.Env = os.Environ()
	for k, v := range server.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	client := sdk.NewClient(p.impl, nil)
	session, err := client.Connect(ctx, &sdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer session.Close()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	for _, tool := range result.Tools {
		report.Tools = append(report.Tools, tool.Name)
	}
	sort.Strings(report.Tools)
	report.OK = true
	return report
}

// ProbeAll probes every configured server, returning reports sorted by name.
func (p *Prober) ProbeAll(ctx context.Context, servers map[string]config.MCPServerConfig) ([]Report, error) {
	if len(servers) == 0 {
		return nil, errors.New("mcp: no servers configured")
	}
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	reports := make([]Report, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		reports = append(reports, p.Probe(ctx, name, servers[name]))
	}
	return reports, nil
}
