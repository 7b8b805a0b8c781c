package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/mcpserver"
)

var serveWarm bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools over stdio",
	Long: "Speaks MCP on stdin/stdout. Logs go to stderr. With --warm, the warm " +
		"scheduler runs in the background for the lifetime of the server.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false, "also run the warm scheduler")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// stdout carries MCP frames.
	logger := setupLogger(debug, os.Stderr)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	a, err := buildApp(cfg, newHTTPClient(), logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveWarm {
		if len(cfg.Warm.Terms) == 0 {
			logger.Warn("--warm set but warm.terms is empty, not warming")
		} else {
			sched := newWarmScheduler(cfg, a, cfg.Warm.Terms, logger)
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = sched.Run(ctx)
			}()
			defer func() {
				stop()
				<-done
			}()
		}
	}

	srv := mcpserver.NewServer(a.dispatcher, version, logger)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp server error", "error", err)
		return err
	}
	logger.Info("mcp server stopped")
	return nil
}
