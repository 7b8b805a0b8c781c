package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/dispatch"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many listings and vectors are stored",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	resp, err := a.dispatcher.Handle(context.Background(), dispatch.StatsRequest{})
	if err != nil {
		return err
	}

	fmt.Printf("%-10s %d\n", "listings", resp.Stats.Listings)
	if resp.Stats.VectorsKnown {
		fmt.Printf("%-10s %d\n", "vectors", resp.Stats.Vectors)
	} else {
		fmt.Printf("%-10s %s\n", "vectors", "unknown")
	}
	fmt.Printf("%-10s %s (%s)\n", "store", cfg.Store.Type, cfg.Store.Path)
	fmt.Printf("%-10s %s\n", "index", cfg.Vector.Type)
	return nil
}
