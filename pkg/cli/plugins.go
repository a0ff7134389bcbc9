package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stitchworks/stitch/pkg/observability"
	"github.com/stitchworks/stitch/pkg/patcher"
)

func newPluginsCommand() *Command {
	cmd := &Command{
		Name:        "plugins",
		Description: "List the patcher plugins a scan of the plugin directory yields",
		Flags:       flag.NewFlagSet("plugins", flag.ExitOnError),
		Run:         runPlugins,
	}

	cmd.Flags.String("patchers", "./patchers", "Directory scanned for compiled patcher plugins")
	cmd.Flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")

	return cmd
}

func runPlugins(args []string) error {
	cmd := newPluginsCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	patchers := cmd.Flags.Lookup("patchers").Value.String()
	logLevel := cmd.Flags.Lookup("log-level").Value.String()

	log := observability.NewLogger(logLevel, "text")

	scanner := patcher.NewScanner(log)
	table, err := scanner.Scan(context.Background(), patchers)
	if err != nil {
		return fmt.Errorf("scan %s: %w", patchers, err)
	}
	defer table.Close()

	plugins := table.Plugins()
	if len(plugins) == 0 {
		fmt.Printf("No patcher plugins found in %s\n", patchers)
		return nil
	}

	fmt.Printf("Loaded %d plugins (%d registrations across %d targets)\n\n",
		len(plugins), table.Registrations(), len(table.Targets()))

	fmt.Printf("Plugins:\n")
	for _, info := range plugins {
		fmt.Printf("  %-30s patchers=%d skipped=%d\n", filepath.Base(info.Path), info.Patchers, info.Skipped)
		if info.Manifest != nil {
			fmt.Printf("    %s %s (api %s)\n", info.Manifest.Name, info.Manifest.Version, info.Manifest.APIVersion)
		}
	}

	fmt.Printf("\nRouting:\n")
	for _, target := range table.Targets() {
		names := make([]string, 0, len(table.TransformsFor(target)))
		for _, reg := range table.TransformsFor(target) {
			names = append(names, reg.Name)
		}
		fmt.Printf("  %-30s <- %s\n", target, strings.Join(names, ", "))
	}
	return nil
}
