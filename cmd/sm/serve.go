package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/sponsormatch/internal/api"
	"github.com/zulandar/sponsormatch/internal/gate"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/notify"
	"github.com/zulandar/sponsormatch/internal/sweep"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the repair sweep",
		Long: `Serves the JSON API, delivers notifications from a background queue and,
unless disabled in config, runs the reconciliation sweep on its cron schedule.
Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	logger := newLogger(cmd)

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := buildSinks(cfg, gormDB)
	if err != nil {
		return err
	}
	queue, err := notify.NewQueue(notify.QueueOpts{
		Next:    notify.NewDispatcher(logger, sinks...),
		Size:    cfg.Notify.QueueSize,
		Workers: cfg.Notify.Workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	queue.Start(context.WithoutCancel(ctx))
	defer queue.Close()

	ids := identity.NewStore(gormDB)
	reg, err := buildRegistry(gormDB, ids, queue, logger)
	if err != nil {
		return err
	}

	if cfg.Sweep.IsEnabled() {
		var sweepers []sweep.Sweeper
		for _, kind := range reg.Kinds() {
			e, _ := reg.Engine(kind)
			sweepers = append(sweepers, e)
		}
		runner, err := sweep.NewRunner(cfg.Sweep.Schedule, logger, sweepers...)
		if err != nil {
			return err
		}
		go runner.Run(ctx)
		logger.Info("sweep scheduled", "schedule", cfg.Sweep.Schedule, "kinds", reg.Kinds())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving channels: %v\n", reg.Kinds())
	return api.Start(ctx, api.StartOpts{
		Engines: reg,
		Gate:    gate.New(gormDB, ids),
		Inbox:   notify.NewStore(gormDB),
		Port:    port,
		Out:     cmd.OutOrStdout(),
		Logger:  logger,
	})
}

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Repair mutual pairs that were never reconciled",
		Long:  "Runs the reconciliation sweep once for every channel and reports how many pairs were repaired.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	reg, err := openEngines(configPath, newLogger(cmd))
	if err != nil {
		return err
	}
	total := 0
	for _, kind := range reg.Kinds() {
		e, _ := reg.Engine(kind)
		n, err := e.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep %s: %w", kind, err)
		}
		fmt.Fprintf(out, "%-12s repaired %d\n", kind, n)
		total += n
	}
	fmt.Fprintf(out, "Repaired %d pairs\n", total)
	return nil
}
