package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/dispatch"
)

var ingestFilters filterFlags

var ingestCmd = &cobra.Command{
	Use:   "ingest TERM...",
	Short: "Search terms and store the listings",
	Long:  "Runs a live search per term and stores every listing in the metadata store and vector index.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestFilters.register(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	resp, err := a.dispatcher.Handle(ctx, dispatch.IngestRequest{Terms: args, Filters: ingestFilters.filters()})
	if err != nil {
		return err
	}

	s := resp.Ingest
	fmt.Printf("%d terms: %d found, %d stored, %d embedded", s.Terms, s.Found, s.Upserted, s.Embedded)
	if s.Failed > 0 {
		fmt.Printf(", %d failed", s.Failed)
	}
	fmt.Println()
	return nil
}
