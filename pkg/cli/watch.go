package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitchworks/stitch/pkg/async"
	"github.com/stitchworks/stitch/pkg/config"
	"github.com/stitchworks/stitch/pkg/observability"
	"github.com/stitchworks/stitch/pkg/watch"
)

func newWatchCommand() *Command {
	cmd := &Command{
		Name:        "watch",
		Description: "Run the patch pipeline as a daemon, re-running on changes",
		Flags:       flag.NewFlagSet("watch", flag.ExitOnError),
		Run:         runWatch,
	}

	cmd.Flags.String("patchers", "./patchers", "Directory scanned for compiled patcher plugins")
	cmd.Flags.String("modules", "./modules", "Directory holding the descriptor modules to patch")
	cmd.Flags.String("addr", ":8420", "HTTP listen address for health and metrics")
	cmd.Flags.Bool("debug-dump", false, "Write <name>_patched.<ext> copies next to patched modules")
	cmd.Flags.String("rescan-schedule", "", "Cron spec for periodic full rescans (empty disables)")
	cmd.Flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.Flags.String("log-format", "text", "Log format (text or json)")

	return cmd
}

// watchConfig merges the environment configuration with explicitly set flags;
// flags win.
func watchConfig(flags *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "patchers":
			cfg.Pipeline.PluginDir = f.Value.String()
		case "modules":
			cfg.Pipeline.ModuleDir = f.Value.String()
		case "addr":
			cfg.Watch.Addr = f.Value.String()
		case "debug-dump":
			cfg.Pipeline.DebugDump = f.Value.String() == "true"
		case "rescan-schedule":
			cfg.Watch.RescanSchedule = f.Value.String()
		case "log-level":
			cfg.Observability.LogLevel = f.Value.String()
		case "log-format":
			cfg.Observability.LogFormat = f.Value.String()
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func runWatch(args []string) error {
	cmd := newWatchCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	cfg, err := watchConfig(cmd.Flags)
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	log.WithFields(logrus.Fields{
		"version":    observability.Version,
		"plugin_dir": cfg.Pipeline.PluginDir,
		"module_dir": cfg.Pipeline.ModuleDir,
		"addr":       cfg.Watch.Addr,
	}).Info("Starting stitch watch daemon")

	daemon := watch.NewDaemon(cfg, log)
	if err := daemon.Start(context.Background()); err != nil {
		return err
	}

	// A fatal background failure (the HTTP listener dying) should take the
	// process down rather than leave a half-alive daemon.
	async.SafeGo(context.Background(), log, 0, "daemon watchdog", func(ctx context.Context) error {
		if err := daemon.Wait(); err != nil {
			log.WithError(err).Fatal("Daemon failed")
		}
		return nil
	})

	shutdownManager := observability.NewShutdownManager(log, daemon.Server(), cfg.Watch.ShutdownTimeout)
	shutdownManager.RegisterShutdownFunc(daemon.Stop)
	return shutdownManager.WaitForShutdown()
}
