// Command vfskit mounts an in-memory virtual filesystem at a mount point
// and serves it until interrupted. It exists mainly as a smoke-test harness
// for the mount stack; real deployments embed the mount package against
// their own storage provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vfskit/vfskit/internal/config"
	"github.com/vfskit/vfskit/internal/logging"
	"github.com/vfskit/vfskit/internal/memfs"
	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/internal/mount"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vfskit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML configuration file")
		mountPoint = flag.String("mount", "", "mount point (overrides configuration)")
		readOnly   = flag.Bool("read-only", false, "mount read-only")
		debug      = flag.Bool("debug", false, "enable driver protocol logging")
	)
	flag.Parse()

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if *mountPoint != "" {
		cfg.Mount.MountPoint = *mountPoint
	}
	if *readOnly {
		cfg.Mount.ReadOnly = true
	}
	if *debug {
		cfg.Mount.Debug = true
		cfg.Logging.Level = "DEBUG"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Setup(cfg.Logging); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := metrics.NewCollector(cfg.Metrics)
	if err != nil {
		return err
	}
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = collector.Stop(context.Background()) }()

	adapter, err := mount.NewWithCollector(memfs.New(), cfg.Mount.MountPoint, cfg.MountOptions(), collector)
	if err != nil {
		return err
	}

	logging.Infof("serving %s until interrupted", adapter.MountPoint())
	return adapter.Serve(ctx)
}
