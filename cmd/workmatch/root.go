package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/workmatch/internal/config"
	"github.com/amishk599/workmatch/internal/model"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "workmatch",
	Short: "Live and semantic job search",
	Long: "workmatch searches Adzuna for job titles, stores every listing it sees and " +
		"tops up sparse live results with semantically similar stored listings.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvPath+" env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.ResolvePath(path))
}

func setupLogger(dbg bool, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// filterFlags are the search filters shared by every command that searches.
type filterFlags struct {
	country        string
	location       string
	salaryMin      int
	employmentType string
	employer       string
	maxDaysOld     int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.country, "country", "", "provider country code (default from config)")
	cmd.Flags().StringVarP(&f.location, "location", "l", "", "free-text location, e.g. London")
	cmd.Flags().IntVar(&f.salaryMin, "salary-min", 0, "minimum annual salary")
	cmd.Flags().StringVar(&f.employmentType, "employment-type", "", "permanent or contract")
	cmd.Flags().StringVar(&f.employer, "employer", "", "only listings from this employer")
	cmd.Flags().IntVar(&f.maxDaysOld, "max-days-old", 0, "only listings posted within this many days")
}

func (f *filterFlags) filters() model.Filters {
	return model.Filters{
		Country:        strings.ToLower(strings.TrimSpace(f.country)),
		Location:       strings.TrimSpace(f.location),
		SalaryMin:      f.salaryMin,
		EmploymentType: strings.ToLower(strings.TrimSpace(f.employmentType)),
		Employer:       strings.TrimSpace(f.employer),
		MaxDaysOld:     f.maxDaysOld,
	}
}
