package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/invertedv/covidcounty/metrics"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var config = Default()

type Config struct {
	OutputDir  string
	OutputFile string

	CasesURL      string
	PopulationURL string
	ElectionURL   string
	InsuranceURL  string // optional
	PovertyURL    string // optional

	ElectionYear int
	OffsetMode   string

	// the database sink is used only if DBDialect is set
	DBDialect string
	DBDSN     string
	DBTable   string

	LogLevel string
}

// environment variables read by InitializeConfig
const (
	envOutputDir     = "COVID_OUTPUT_DIR"
	envOutputFile    = "COVID_OUTPUT_FILE"
	envCasesURL      = "COVID_CASES_URL"
	envPopulationURL = "COVID_POPULATION_URL"
	envElectionURL   = "COVID_ELECTION_URL"
	envInsuranceURL  = "COVID_INSURANCE_URL"
	envPovertyURL    = "COVID_POVERTY_URL"
	envElectionYear  = "COVID_ELECTION_YEAR"
	envOffsetMode    = "COVID_OFFSET_MODE"
	envDBDialect     = "COVID_DB_DIALECT"
	envDBDSN         = "COVID_DB_DSN"
	envDBTable       = "COVID_DB_TABLE"
	envLogLevel      = "COVID_LOG_LEVEL"
)

var dialects = []string{"clickhouse", "postgres", "sqlite"}

// Default returns the public sources and a CSV in the working directory.
func Default() Config {
	return Config{
		OutputDir:     ".",
		OutputFile:    "covid_data.csv",
		CasesURL:      "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv",
		PopulationURL: "https://www2.census.gov/programs-surveys/popest/datasets/2010-2019/counties/totals/co-est2019-alldata.csv",
		ElectionURL:   "https://dataverse.harvard.edu/api/access/datafile/3641280?format=original&gbrecs=true",
		ElectionYear:  2016,
		OffsetMode:    metrics.ByCalendar.String(),
		DBTable:       "covid_data",
		LogLevel:      "info",
	}
}

// InitializeConfig loads the configuration: defaults, then envFiles (".env" if none are
// given; a missing file is fine), then the environment. Variables already in the
// environment win over the files.
func InitializeConfig(envFiles ...string) error {
	c, err := loadConfig(envFiles...)
	if err != nil {
		return err
	}

	config = c

	return nil
}

func loadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, ef := range envFiles {
		if err := godotenv.Load(ef); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", ef, err)
		}
	}

	c := Default()
	for env, dest := range map[string]*string{
		envOutputDir:     &c.OutputDir,
		envOutputFile:    &c.OutputFile,
		envCasesURL:      &c.CasesURL,
		envPopulationURL: &c.PopulationURL,
		envElectionURL:   &c.ElectionURL,
		envInsuranceURL:  &c.InsuranceURL,
		envPovertyURL:    &c.PovertyURL,
		envOffsetMode:    &c.OffsetMode,
		envDBDialect:     &c.DBDialect,
		envDBDSN:         &c.DBDSN,
		envDBTable:       &c.DBTable,
		envLogLevel:      &c.LogLevel,
	} {
		if val, ok := os.LookupEnv(env); ok {
			*dest = strings.TrimSpace(val)
		}
	}

	if val, ok := os.LookupEnv(envElectionYear); ok {
		yr, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envElectionYear, err)
		}

		c.ElectionYear = yr
	}

	return c, nil
}

// GetConfig returns the current configuration.
func GetConfig() Config {
	return config
}

// Validate checks that a run can start with c.
func (c Config) Validate() error {
	var errs []error
	for name, val := range map[string]string{
		"output directory":    c.OutputDir,
		"output file":         c.OutputFile,
		"cases location":      c.CasesURL,
		"population location": c.PopulationURL,
		"election location":   c.ElectionURL,
	} {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("no %s", name))
		}
	}

	if c.ElectionYear <= 0 {
		errs = append(errs, fmt.Errorf("bad election year %d", c.ElectionYear))
	}

	if _, err := metrics.ParseMode(c.OffsetMode); err != nil {
		errs = append(errs, err)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.DBDialect != "" {
		found := false
		for _, d := range dialects {
			found = found || strings.EqualFold(c.DBDialect, d)
		}

		if !found {
			errs = append(errs, fmt.Errorf("unsupported database %s", c.DBDialect))
		}

		if c.DBDSN == "" || c.DBTable == "" {
			errs = append(errs, fmt.Errorf("database %s needs a DSN and a table", c.DBDialect))
		}
	}

	return errors.Join(errs...)
}

// OutputPath is the CSV file the run writes.
func (c Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// Mode is the parsed OffsetMode. Call Validate first.
func (c Config) Mode() metrics.Mode {
	m, _ := metrics.ParseMode(c.OffsetMode)
	return m
}
