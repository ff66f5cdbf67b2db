package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/invertedv/covidcounty/pipeline"
	"github.com/invertedv/covidcounty/settings"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var envFile string

func newRootCmd(cfg *settings.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covidpull",
		Short: "Pull county COVID-19 cases and enrich them with population, election and health data",
		Long: `covidpull downloads the NYT county case file, the Census 2019 population estimates and
the MIT Election Lab county presidential returns (plus, optionally, county insurance and
poverty rates), joins them on the county FIPS code with New York City treated as one
county, derives growth metrics per county and writes a single CSV file.

Case rows the NYT file leaves without a county code (e.g. "Unknown") are kept. Their fips
field is empty, as are their joined and derived values.

Settings come from defaults, then a .env file, then COVID_* environment variables, then flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rpt, err := pipeline.Run(ctx, *cfg)
			if err != nil {
				return err
			}

			log.WithField("run", rpt.RunID).Infof("output %s", rpt.Output)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "directory for the CSV file")
	f.StringVar(&cfg.OutputFile, "output-file", cfg.OutputFile, "name of the CSV file")
	f.StringVar(&cfg.CasesURL, "cases", cfg.CasesURL, "case file URL or path")
	f.StringVar(&cfg.PopulationURL, "population", cfg.PopulationURL, "population estimates URL or path")
	f.StringVar(&cfg.ElectionURL, "election", cfg.ElectionURL, "election returns URL or path")
	f.StringVar(&cfg.InsuranceURL, "insurance", cfg.InsuranceURL, "uninsured rate URL or path (optional)")
	f.StringVar(&cfg.PovertyURL, "poverty", cfg.PovertyURL, "poverty rate URL or path (optional)")
	f.IntVar(&cfg.ElectionYear, "election-year", cfg.ElectionYear, "presidential election year")
	f.StringVar(&cfg.OffsetMode, "offset-mode", cfg.OffsetMode, "how prior days are found: calendar or ordinal")
	f.StringVar(&cfg.DBDialect, "db", cfg.DBDialect, "also save to a database: clickhouse, postgres or sqlite")
	f.StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "database connection string")
	f.StringVar(&cfg.DBTable, "table", cfg.DBTable, "database table")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	return cmd
}

func main() {
	// the .env file has to be read before the flags get their defaults
	for ind, arg := range os.Args {
		switch {
		case arg == "--env" && ind+1 < len(os.Args):
			envFile = os.Args[ind+1]
		case strings.HasPrefix(arg, "--env="):
			envFile = strings.TrimPrefix(arg, "--env=")
		}
	}

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	if err := settings.InitializeConfig(files...); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cfg := settings.GetConfig()
	cmd := newRootCmd(&cfg)
	cmd.Flags().StringVar(&envFile, "env", envFile, "file of COVID_* settings (default .env)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
