package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/dispatch"
)

var (
	titlesFilters filterFlags
	titlesLimit   int
)

var titlesCmd = &cobra.Command{
	Use:   "titles TERM",
	Short: "List job titles advertised for a field",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTitles,
}

func init() {
	titlesFilters.register(titlesCmd)
	titlesCmd.Flags().IntVarP(&titlesLimit, "limit", "n", 5, "maximum number of titles")
	rootCmd.AddCommand(titlesCmd)
}

func runTitles(cmd *cobra.Command, args []string) error {
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

	resp, err := a.dispatcher.Handle(ctx, dispatch.ExploreTitlesRequest{
		Term:    strings.Join(args, " "),
		Filters: titlesFilters.filters(),
		Limit:   titlesLimit,
	})
	if err != nil {
		return err
	}

	if len(resp.Titles) == 0 {
		fmt.Println("No titles found.")
		return nil
	}
	for _, t := range resp.Titles {
		fmt.Println(t)
	}
	return nil
}
