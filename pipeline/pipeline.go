// Package pipeline runs one pull: load the sources, normalize and reduce them, join them
// onto the case table, derive the metrics and write the result.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	cc "github.com/invertedv/covidcounty"
	"github.com/invertedv/covidcounty/mem"
	"github.com/invertedv/covidcounty/metrics"
	"github.com/invertedv/covidcounty/settings"
	"github.com/invertedv/covidcounty/sources"
	log "github.com/sirupsen/logrus"
)

// orderBy is the sort key of the database table
const orderBy = "fips,date"

// Report summarizes a run.
type Report struct {
	RunID   string
	Output  string
	Table   string // database table, if one was written
	Rows    int
	Columns []string

	// Matched is the number of case rows that found a value, per joined column
	Matched map[string]int
	// Skipped is the number of source rows dropped, per source
	Skipped map[string]int

	Metrics metrics.Summary
	Elapsed time.Duration
}

// Run executes the pull described by cfg. Any failure to fetch or parse a source stops
// the run; values that can't be matched or computed are left missing.
func Run(ctx context.Context, cfg settings.Config) (*Report, error) {
	if e := cfg.Validate(); e != nil {
		return nil, fmt.Errorf("config: %w", e)
	}

	start := time.Now()
	rpt := &Report{
		RunID:   uuid.NewString(),
		Matched: make(map[string]int),
		Skipped: make(map[string]int),
	}

	entry := log.WithField("run", rpt.RunID)
	entry.Infof("starting pull, offset mode %s", cfg.Mode())

	ldr := sources.NewLoader(http.DefaultClient, entry)

	var (
		cases *sources.Cases
		e     error
	)
	if cases, e = ldr.Cases(ctx, cfg.CasesURL); e != nil {
		return nil, e
	}

	unknown := 0
	for _, code := range cases.FIPS {
		if !code.Valid() {
			unknown++
		}
	}

	if unknown > 0 {
		entry.Warnf("%s case rows have no county code", humanize.Comma(int64(unknown)))
	}

	var reduced []*mem.Reduced
	if reduced, e = auxiliary(ctx, ldr, cfg, rpt, entry); e != nil {
		return nil, e
	}

	var df *cc.Frame
	if df, e = cases.Frame(); e != nil {
		return nil, e
	}

	for _, r := range reduced {
		var matched int
		if matched, e = mem.Join(df, cases.FIPS, r); e != nil {
			return nil, e
		}

		rpt.Matched[r.Name()] = matched
		entry.WithField("column", r.Name()).Infof("joined %s of %s rows", humanize.Comma(int64(matched)), humanize.Comma(int64(df.RowCount())))
	}

	if e = derive(df, cases, cfg.Mode(), rpt, entry); e != nil {
		return nil, e
	}

	rpt.Rows, rpt.Columns = df.RowCount(), df.ColumnNames()

	if e = save(cfg, df, rpt, entry); e != nil {
		return nil, e
	}

	rpt.Elapsed = time.Since(start)
	entry.Infof("done: %s rows, %d columns in %s", humanize.Comma(int64(rpt.Rows)), df.ColumnCount(), rpt.Elapsed.Round(time.Millisecond))

	return rpt, nil
}

// auxiliary loads and reduces every table joined onto the cases, in output order.
// An optional table that isn't configured joins as an all-missing column.
func auxiliary(ctx context.Context, ldr *sources.Loader, cfg settings.Config, rpt *Report, entry *log.Entry) ([]*mem.Reduced, error) {
	var (
		pop, elect *sources.Keyed
		e          error
	)
	if pop, e = ldr.Population(ctx, cfg.PopulationURL); e != nil {
		return nil, e
	}

	if elect, e = ldr.Election(ctx, cfg.ElectionURL, cfg.ElectionYear); e != nil {
		return nil, e
	}

	var out []*mem.Reduced
	for _, kr := range []struct {
		k      *sources.Keyed
		reduce mem.Reducer
	}{
		{pop, mem.Sum},
		{elect, mem.Mean},
	} {
		var r *mem.Reduced
		if r, e = reduce(kr.k, kr.reduce, rpt, entry); e != nil {
			return nil, e
		}

		out = append(out, r)
	}

	for _, rs := range []struct {
		schema sources.RateSchema
		loc    string
	}{
		{sources.Insurance, cfg.InsuranceURL},
		{sources.Poverty, cfg.PovertyURL},
	} {
		schema := rs.schema
		k := &sources.Keyed{Name: schema.Name}
		if rs.loc == "" {
			entry.Warnf("no %s source, column will be empty", schema.Name)
		} else if k, e = ldr.Rates(ctx, rs.loc, schema); e != nil {
			return nil, e
		}

		var r *mem.Reduced
		if r, e = reduce(k, mem.Mean, rpt, entry); e != nil {
			return nil, e
		}

		out = append(out, r, r.PercentileRank(schema.Name+"_rank"))
	}

	return out, nil
}

func reduce(k *sources.Keyed, fn mem.Reducer, rpt *Report, entry *log.Entry) (*mem.Reduced, error) {
	rpt.Skipped[k.Name] = k.Skipped
	if k.Skipped > 0 {
		entry.WithField("source", k.Name).Warnf("skipped %s rows", humanize.Comma(int64(k.Skipped)))
	}

	r, e := mem.By(k.Name, k.FIPS, k.Values, fn)
	if e != nil {
		return nil, e
	}

	entry.WithField("source", k.Name).Infof("%s rows reduced to %s counties", humanize.Comma(int64(k.Len())), humanize.Comma(int64(r.Len())))

	return r, nil
}

// derive appends the metric columns to df. Population is taken from the joined column.
func derive(df *cc.Frame, cases *sources.Cases, mode metrics.Mode, rpt *Report, entry *log.Entry) error {
	var (
		pop *cc.Col
		e   error
	)
	if pop, e = df.Column(sources.ColPopulation); e != nil {
		return e
	}

	in := &metrics.Input{
		FIPS:       cases.FIPS,
		Date:       cases.Date,
		Cases:      cases.Cases,
		Population: pop.AsFloat(),
	}

	var (
		res *metrics.Result
		sum *metrics.Summary
	)
	if res, sum, e = metrics.Derive(in, mode); e != nil {
		return e
	}

	rpt.Metrics = *sum
	entry.Infof("metrics for %s counties", humanize.Comma(int64(sum.Counties)))
	if sum.Gaps > 0 {
		entry.Warnf("%s gaps in the daily series", humanize.Comma(int64(sum.Gaps)))
	}

	if sum.Reordered > 0 {
		entry.Infof("%s counties were not in date order", humanize.Comma(int64(sum.Reordered)))
	}

	var cols []*cc.Col
	if cols, e = res.Columns(); e != nil {
		return e
	}

	for _, col := range cols {
		if e = df.AppendColumn(col); e != nil {
			return e
		}
	}

	return nil
}

// save writes the CSV and, if a database is configured, the table.
func save(cfg settings.Config, df *cc.Frame, rpt *Report, entry *log.Entry) error {
	var (
		f *cc.Files
		e error
	)
	if f, e = cc.NewFiles(); e != nil {
		return e
	}

	rpt.Output = cfg.OutputPath()
	if e = f.Save(rpt.Output, df); e != nil {
		return e
	}

	entry.Infof("wrote %s", rpt.Output)

	if cfg.DBDialect == "" {
		return nil
	}

	return saveDB(cfg, df, rpt, entry)
}

func saveDB(cfg settings.Config, df *cc.Frame, rpt *Report, entry *log.Entry) error {
	db, e := cc.Connect(cfg.DBDialect, cfg.DBDSN)
	if e != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.DBDialect, e)
	}

	var dlct *cc.Dialect
	if dlct, e = cc.NewDialect(cfg.DBDialect, db); e != nil {
		_ = db.Close()
		return e
	}
	defer func() { _ = dlct.Close() }()

	if e = dlct.Save(cfg.DBTable, orderBy, true, df); e != nil {
		return fmt.Errorf("saving %s: %w", cfg.DBTable, e)
	}

	rpt.Table = cfg.DBTable
	entry.WithField("table", cfg.DBTable).Infof("saved %s rows to %s", humanize.Comma(int64(df.RowCount())), dlct.DialectName())

	return nil
}
