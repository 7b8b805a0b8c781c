package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/config"
	"github.com/amishk599/workmatch/internal/model"
	"github.com/amishk599/workmatch/internal/scheduler"
)

// warmTermDelay spaces out searches within one warm cycle.
const warmTermDelay = time.Second

var warmOnce bool

var warmCmd = &cobra.Command{
	Use:   "warm [TERM...]",
	Short: "Keep the semantic index populated",
	Long: "Periodically searches the configured warm.terms (or the given terms) and stores " +
		"the results; blocks until SIGINT/SIGTERM unless --once is set.",
	RunE: runWarm,
}

func init() {
	warmCmd.Flags().BoolVar(&warmOnce, "once", false, "run a single cycle and exit")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug, os.Stdout)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	terms := cfg.Warm.Terms
	if len(args) > 0 {
		terms = args
	}
	if len(terms) == 0 {
		return fmt.Errorf("no warm terms: set warm.terms in config or pass terms as arguments")
	}

	a, err := buildApp(cfg, newHTTPClient(), logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := newWarmScheduler(cfg, a, terms, logger)
	if warmOnce {
		stats := sched.RunOnce(ctx)
		fmt.Printf("%d terms: %d found, %d stored, %d embedded\n", stats.Terms, stats.Found, stats.Upserted, stats.Embedded)
		return nil
	}

	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		return err
	}
	logger.Info("goodbye")
	return nil
}

func newWarmScheduler(cfg *config.Config, a *app, terms []string, logger *slog.Logger) *scheduler.Scheduler {
	f := model.Filters{Country: cfg.Warm.Country, Location: cfg.Warm.Location}
	return scheduler.NewScheduler(a.search, a.pipeline, terms, f, cfg.Warm.Interval, warmTermDelay, logger)
}
