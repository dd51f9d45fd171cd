package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// ioStreams wires stdout/stderr for commands and becomes injectable in tests.
type ioStreams struct {
	out io.Writer
	err io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	streams := ioStreams{out: os.Stdout, err: os.Stderr}
	if err := runCLI(ctx, os.Args[1:], streams); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(streams.err, err)
		}
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, argv []string, streams ioStreams) error {
	global := flag.NewFlagSet("reflex", flag.ContinueOnError)
	global.SetOutput(streams.err)
	projectRoot := "."
	global.StringVar(&projectRoot, "project", projectRoot, "Project root containing .claude/ (defaults to the working directory).")
	global.Usage = func() {
		fmt.Fprintln(streams.err, "reflex - agent orchestration surface")
		fmt.Fprintln(streams.err, "\nUsage:")
		fmt.Fprintln(streams.err, "  reflex [global flags] <command> [args]")
		fmt.Fprintln(streams.err, "\nCommands:")
		fmt.Fprintln(streams.err, "  task         Route a task through the agent directory")
		fmt.Fprintln(streams.err, "  agents       List registered agents")
		fmt.Fprintln(streams.err, "  audit        Control the audit trail (on|off|status|export)")
		fmt.Fprintln(streams.err, "  mcp          Probe configured MCP servers")
		fmt.Fprintln(streams.err, "  gitconfig    Apply the recommended git configuration (alias: gc)")
		fmt.Fprintln(streams.err, "  certcollect  Collect the TLS certificate chain from a host")
		fmt.Fprintln(streams.err, "\nGlobal Flags:")
		global.PrintDefaults()
		fmt.Fprintln(streams.err, "\nRun 'reflex <command> -h' for command-specific usage.")
	}
	if err := global.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		return fmt.Errorf("missing command")
	}
	sub := args[0]
	rest := args[1:]
	switch sub {
	case "task":
		return taskCommand(ctx, rest, projectRoot, streams)
	case "agents":
		return agentsCommand(ctx, rest, projectRoot, streams)
	case "audit":
		return auditCommand(ctx, rest, projectRoot, streams)
	case "mcp":
		return mcpCommand(ctx, rest, projectRoot, streams)
	case "gitconfig", "gc":
		return gitconfigCommand(ctx, rest, streams)
	case "certcollect":
		return certcollectCommand(ctx, rest, streams)
	case "help", "-h", "--help":
		global.Usage()
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", sub)
	}
}
