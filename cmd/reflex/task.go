package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/reflexhq/reflex/pkg/hooks"
)

func taskCommand(ctx context.Context, argv []string, projectRoot string, streams ioStreams) error {
	set := flag.NewFlagSet("task", flag.ContinueOnError)
	set.SetOutput(streams.err)
	var (
		agentFlag   = set.String("agent", "", "Route to this agent instead of the configured default.")
		sessionFlag = set.String("session", "", "Session id to stamp on hook emissions (default: generated).")
		jsonFlag    = set.Bool("json", false, "Print the raw result as JSON.")
	)
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: reflex task [flags] \"task description\"")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
		fmt.Fprintln(streams.err, "\nExamples:")
		fmt.Fprintln(streams.err, "  reflex task \"summarize open TODOs\"")
		fmt.Fprintln(streams.err, "  reflex task --agent reviewer \"check the last commit\"")
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	task := strings.TrimSpace(strings.Join(set.Args(), " "))
	if task == "" {
		return errors.New("task requires a description")
	}

	application, err := buildApp(ctx, projectRoot)
	if err != nil {
		return err
	}
	defer application.Close(ctx)

	if *sessionFlag != "" {
		application.hooks.SetSessionID(*sessionFlag)
		application.orchestrator.SetSessionID(*sessionFlag)
	}
	application.hooks.Emit(ctx, hooks.SessionStart, map[string]any{"task": task})
	result, routeErr := application.orchestrator.RouteTask(ctx, task, *agentFlag)
	application.hooks.Emit(ctx, hooks.SessionEnd, map[string]any{"task": task, "success": routeErr == nil && result.Success})
	if routeErr != nil {
		return routeErr
	}

	if *jsonFlag {
		encoder := json.NewEncoder(streams.out)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Fprintln(streams.out, "# reflex task")
	fmt.Fprintf(streams.out, "- Success: %v\n", result.Success)
	fmt.Fprintln(streams.out, "\n## Output")
	fmt.Fprintf(streams.out, "```\n%s\n```\n", formatOutput(result.Output))
	if len(result.Artifacts) > 0 {
		fmt.Fprintln(streams.out, "\n## Artifacts")
		for _, art := range result.Artifacts {
			fmt.Fprintf(streams.out, "- `%s` (%s)\n", art.Name, art.Type)
		}
	}
	return nil
}

func formatOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}
