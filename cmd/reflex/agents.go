package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
)

func agentsCommand(ctx context.Context, argv []string, projectRoot string, streams ioStreams) error {
	set := flag.NewFlagSet("agents", flag.ContinueOnError)
	set.SetOutput(streams.err)
	jsonFlag := set.Bool("json", false, "Print the agent directory as JSON.")
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: reflex agents [flags]")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	application, err := buildApp(ctx, projectRoot)
	if err != nil {
		return err
	}
	defer application.Close(ctx)

	infos := application.orchestrator.ListAgents()
	if *jsonFlag {
		encoder := json.NewEncoder(streams.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	fmt.Fprintln(streams.out, "# registered agents")
	for _, info := range infos {
		fmt.Fprintf(streams.out, "- %s: %s\n", info.Name, info.Description)
		if len(info.Skills) > 0 {
			fmt.Fprintf(streams.out, "  skills: %s\n", strings.Join(info.Skills, ", "))
		}
	}
	return nil
}
