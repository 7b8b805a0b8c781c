package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/dispatch"
	"github.com/amishk599/workmatch/internal/model"
)

var (
	retrieveFilters filterFlags
	retrieveRelated []string
	retrieveJSON    bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve TITLE",
	Short: "Search live listings with semantic fallback",
	Long: "Searches the title and every --related title concurrently, stores what it finds " +
		"and tops up sparse results from the semantic index.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveFilters.register(retrieveCmd)
	retrieveCmd.Flags().StringSliceVarP(&retrieveRelated, "related", "r", nil, "related titles searched alongside TITLE")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
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

	resp, err := a.dispatcher.Handle(ctx, dispatch.RetrieveRequest{
		Primary: strings.Join(args, " "),
		Related: retrieveRelated,
		Filters: retrieveFilters.filters(),
	})
	if err != nil {
		return err
	}

	if retrieveJSON {
		return printJSON(resp.Retrieval)
	}
	printListings(*resp.Retrieval)
	return nil
}

func printListings(result model.RetrievalResult) {
	if len(result.Listings) == 0 {
		fmt.Println("No listings found.")
		return
	}

	for i, l := range result.Listings {
		source := "live"
		if i >= result.LiveCount {
			source = "stored"
		}
		fmt.Printf("%2d. %s at %s (%s) [%s]\n", i+1, l.Title, l.Employer, l.LocationRaw, source)
		fmt.Printf("    %s | %s\n", l.SalaryText(), l.EmploymentText())
		if l.URL != "" {
			fmt.Printf("    %s\n", l.URL)
		}
	}
	fmt.Printf("\n%d listings (%d live, %d from the semantic index)\n",
		len(result.Listings), result.LiveCount, result.FallbackCount)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
