package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/reflexhq/reflex/pkg/audit"
	"github.com/reflexhq/reflex/pkg/config"
)

func auditCommand(ctx context.Context, argv []string, projectRoot string, streams ioStreams) error {
	set := flag.NewFlagSet("audit", flag.ContinueOnError)
	set.SetOutput(streams.err)
	outFlag := set.String("out", "", "Export destination file (defaults to stdout).")
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: reflex audit <on|off|status|export> [flags]")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if set.NArg() != 1 {
		set.Usage()
		return errors.New("audit requires exactly one of on|off|status|export")
	}

	loader, err := config.NewLoader(projectRoot)
	if err != nil {
		return err
	}
	project, err := loader.Load()
	if err != nil {
		return err
	}
	trail, err := audit.Open(project.AuditDir())
	if err != nil {
		return err
	}
	defer trail.Close()

	switch action := set.Arg(0); action {
	case "on":
		if err := trail.Enable(); err != nil {
			return err
		}
		fmt.Fprintln(streams.out, "audit: on")
		return nil
	case "off":
		if err := trail.Disable(); err != nil {
			return err
		}
		fmt.Fprintln(streams.out, "audit: off")
		return nil
	case "status":
		st, err := trail.Status()
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(streams.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(st)
	case "export":
		var dst io.Writer = streams.out
		if *outFlag != "" {
			f, err := os.Create(*outFlag)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			dst = f
		}
		return trail.Export(dst)
	default:
		set.Usage()
		return fmt.Errorf("unknown audit action %q", action)
	}
}
