package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/reflexhq/reflex/pkg/config"
	"github.com/reflexhq/reflex/pkg/mcp"
)

func mcpCommand(ctx context.Context, argv []string, projectRoot string, streams ioStreams) error {
	set := flag.NewFlagSet("mcp", flag.ContinueOnError)
	set.SetOutput(streams.err)
	var (
		timeoutFlag = set.Duration("timeout", 10*time.Second, "Per-server probe budget.")
		jsonFlag    = set.Bool("json", false, "Print probe reports as JSON.")
	)
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: reflex mcp [flags]")
		fmt.Fprintln(streams.err, "\nProbes every MCP server configured in .claude/settings.json.")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	loader, err := config.NewLoader(projectRoot)
	if err != nil {
		return err
	}
	project, err := loader.Load()
	if err != nil {
		return err
	}

	prober := mcp.NewProber(appName, appVersion, mcp.WithProbeTimeout(*timeoutFlag))
	reports, err := prober.ProbeAll(ctx, project.Settings.MCPServers)
	if err != nil {
		return err
	}

	if *jsonFlag {
		encoder := json.NewEncoder(streams.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}

	fmt.Fprintln(streams.out, "# mcp servers")
	for _, report := range reports {
		if report.OK {
			fmt.Fprintf(streams.out, "- %s: ok (%s)\n", report.Name, strings.Join(report.Tools, ", "))
			continue
		}
		fmt.Fprintf(streams.out, "- %s: unreachable (%s)\n", report.Name, report.Error)
	}
	return nil
}
