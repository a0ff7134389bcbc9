package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stitchworks/stitch/pkg/descriptor"
	"github.com/stitchworks/stitch/pkg/observability"
	"github.com/stitchworks/stitch/pkg/patcher"
)

func newPatchCommand() *Command {
	cmd := &Command{
		Name:        "patch",
		Description: "Scan patcher plugins and apply them to descriptor modules",
		Flags:       flag.NewFlagSet("patch", flag.ExitOnError),
		Run:         runPatch,
	}

	cmd.Flags.String("patchers", "./patchers", "Directory scanned for compiled patcher plugins")
	cmd.Flags.String("modules", "./modules", "Directory holding the descriptor modules to patch")
	cmd.Flags.Bool("debug-dump", false, "Write <name>_patched.<ext> copies next to patched modules")
	cmd.Flags.Bool("strict", false, "Exit nonzero when any transform or target fails")
	cmd.Flags.Bool("no-cache", false, "Decode modules without the LRU cache")
	cmd.Flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.Flags.String("log-format", "text", "Log format (text or json)")

	return cmd
}

func runPatch(args []string) error {
	cmd := newPatchCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	patchers := cmd.Flags.Lookup("patchers").Value.String()
	modules := cmd.Flags.Lookup("modules").Value.String()
	debugDump := cmd.Flags.Lookup("debug-dump").Value.String() == "true"
	strict := cmd.Flags.Lookup("strict").Value.String() == "true"
	noCache := cmd.Flags.Lookup("no-cache").Value.String() == "true"
	logLevel := cmd.Flags.Lookup("log-level").Value.String()
	logFormat := cmd.Flags.Lookup("log-format").Value.String()

	log := observability.NewLogger(logLevel, logFormat)
	ctx := context.Background()

	scanner := patcher.NewScanner(log)
	table, err := scanner.Scan(ctx, patchers)
	if err != nil {
		return fmt.Errorf("scan %s: %w", patchers, err)
	}
	defer table.Close()

	if table.Empty() {
		fmt.Printf("No patchers found in %s; nothing to do\n", patchers)
		return nil
	}

	var codec descriptor.Codec = descriptor.NewProtoCodec()
	if !noCache {
		codec = descriptor.NewCachedCodec(codec, 64, 5*time.Minute)
	}

	engine := patcher.NewEngine(codec, log)
	engine.SetDebugDump(debugDump)

	start := time.Now()
	patched, errs := engine.Patch(ctx, table, modules)

	fmt.Printf("Patched %d modules with %d registrations from %d plugins in %s\n",
		len(patched), table.Registrations(), len(table.Plugins()),
		time.Since(start).Round(time.Millisecond))

	if len(errs) > 0 {
		fmt.Printf("%d errors were collected; see the log for details\n", len(errs))
		if strict {
			return fmt.Errorf("patch run finished with %d errors", len(errs))
		}
	}
	return nil
}
