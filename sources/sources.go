// Package sources loads the raw county tables and tags every row with its normalized
// county identifier.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	cc "github.com/invertedv/covidcounty"
	"github.com/invertedv/covidcounty/fips"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
	"gopkg.in/guregu/null.v3"
)

// column names of the case file
const (
	colDate   = "date"
	colCounty = "county"
	colState  = "state"
	colFIPS   = "fips"
	colCases  = "cases"
	colDeaths = "deaths"
)

// column names of the census population estimates
const (
	colPopState      = "STATE"
	colPopCounty     = "COUNTY"
	colPopStateName  = "STNAME"
	colPopCountyName = "CTYNAME"
	ColPopulation    = "POPESTIMATE2019"
)

// column names of the county presidential returns
const (
	colElYear       = "year"
	colElState      = "state"
	colElCounty     = "county"
	colElFIPS       = "FIPS"
	colElOffice     = "office"
	colElParty      = "party"
	colElCandVotes  = "candidatevotes"
	colElTotalVotes = "totalvotes"

	ColRepublican = "pct_republican"
)

const republican = "republican"

var presidentOffices = []string{"president", "us president"}

// Cases is the case table. FIPS is Unknown for rows the source leaves without a county.
type Cases struct {
	Date   []time.Time
	County []string
	State  []string
	FIPS   []fips.Code
	Cases  []null.Int
	Deaths []null.Int
}

// Keyed is an auxiliary table reduced to (identifier, value) pairs, one per raw row.
type Keyed struct {
	Name   string
	FIPS   []fips.Code
	Values []null.Float

	// Skipped counts rows dropped for lack of a county identifier or a value
	Skipped int
}

// RateSchema names the columns of a county rate table such as insurance or poverty.
// The name columns are optional.
type RateSchema struct {
	Name       string
	State      string
	County     string
	CountyName string
	StateName  string
	Value      string
}

// Insurance is the layout of the Census SAHIE county file.
var Insurance = RateSchema{
	Name:       "pct_uninsured",
	State:      "statefips",
	County:     "countyfips",
	CountyName: "county_name",
	StateName:  "state_name",
	Value:      "PCTUI",
}

// Poverty is the layout of the Census SAIPE county file.
var Poverty = RateSchema{
	Name:       "pct_poverty",
	State:      "State FIPS Code",
	County:     "County FIPS Code",
	CountyName: "Name",
	StateName:  "State Name",
	Value:      "Poverty Percent, All Ages",
}

type Loader struct {
	Client *http.Client
	Log    *log.Entry
}

func NewLoader(client *http.Client, entry *log.Entry) *Loader {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}

	return &Loader{Client: client, Log: entry}
}

func (l *Loader) table(ctx context.Context, name, location string, opts []cc.FileOpt, required ...string) (*cc.Table, error) {
	var (
		f *cc.Files
		e error
	)
	if f, e = cc.NewFiles(opts...); e != nil {
		return nil, e
	}

	rc, e := Fetch(ctx, l.Client, location)
	if e != nil {
		return nil, fmt.Errorf("%s: %w", name, e)
	}
	defer func() { _ = rc.Close() }()

	cr := &countingReader{r: rc}

	var t *cc.Table
	if t, e = f.Load(name, cr, required...); e != nil {
		return nil, e
	}

	l.Log.WithField("source", name).Infof("fetched %s, %s rows", humanize.Bytes(uint64(cr.n)), humanize.Comma(int64(t.RowCount())))

	return t, nil
}

func (l *Loader) Cases(ctx context.Context, location string) (*Cases, error) {
	var (
		t *cc.Table
		e error
	)
	if t, e = l.table(ctx, "cases", location, nil, colDate, colCounty, colState, colFIPS, colCases, colDeaths); e != nil {
		return nil, e
	}

	return CasesFromTable(t)
}

func (l *Loader) Population(ctx context.Context, location string) (*Keyed, error) {
	var (
		t *cc.Table
		e error
	)
	opts := []cc.FileOpt{cc.FileEncoding(charmap.ISO8859_1)}
	if t, e = l.table(ctx, "population", location, opts, colPopState, colPopCounty, colPopStateName, colPopCountyName, ColPopulation); e != nil {
		return nil, e
	}

	return PopulationFromTable(t)
}

func (l *Loader) Election(ctx context.Context, location string, year int) (*Keyed, error) {
	var (
		t *cc.Table
		e error
	)
	if t, e = l.table(ctx, "election", location, nil, colElYear, colElState, colElCounty, colElFIPS,
		colElOffice, colElParty, colElCandVotes, colElTotalVotes); e != nil {
		return nil, e
	}

	return ElectionFromTable(t, year)
}

func (l *Loader) Rates(ctx context.Context, location string, schema RateSchema) (*Keyed, error) {
	var (
		t *cc.Table
		e error
	)
	if t, e = l.table(ctx, schema.Name, location, nil, schema.State, schema.County, schema.Value); e != nil {
		return nil, e
	}

	return RatesFromTable(t, schema)
}

// CasesFromTable converts the case file. A blank fips is allowed (the source leaves some
// aggregates without one); anything else that isn't a code is an error.
func CasesFromTable(t *cc.Table) (*Cases, error) {
	if e := t.Require(colDate, colCounty, colState, colFIPS, colCases, colDeaths); e != nil {
		return nil, e
	}

	n := t.RowCount()
	c := &Cases{
		Date:   make([]time.Time, n),
		County: make([]string, n),
		State:  make([]string, n),
		FIPS:   make([]fips.Code, n),
		Cases:  make([]null.Int, n),
		Deaths: make([]null.Int, n),
	}

	for row := 0; row < n; row++ {
		var e error
		if c.Date[row], e = cc.ParseDate(t.Field(row, colDate)); e != nil {
			return nil, rowError(t, row, e)
		}

		c.County[row] = t.Field(row, colCounty)
		c.State[row] = t.Field(row, colState)

		code, e := fips.Parse(t.Field(row, colFIPS))
		if e != nil && !errors.Is(e, fips.ErrMissing) {
			return nil, rowError(t, row, e)
		}

		c.FIPS[row] = fips.Normalize(code, c.County[row], c.State[row])

		if c.Cases[row], e = cc.ParseInt(t.Field(row, colCases)); e != nil {
			return nil, rowError(t, row, e)
		}

		if c.Deaths[row], e = cc.ParseInt(t.Field(row, colDeaths)); e != nil {
			return nil, rowError(t, row, e)
		}
	}

	return c, nil
}

func PopulationFromTable(t *cc.Table) (*Keyed, error) {
	if e := t.Require(colPopState, colPopCounty, colPopStateName, colPopCountyName, ColPopulation); e != nil {
		return nil, e
	}

	k := &Keyed{Name: ColPopulation}
	for row := 0; row < t.RowCount(); row++ {
		code, e := fips.PartsFromStrings(t.Field(row, colPopState), t.Field(row, colPopCounty))
		// county 000 is the state total
		if e != nil || code.County() == 0 {
			k.Skipped++
			continue
		}

		var val null.Float
		if val, e = cc.ParseFloat(t.Field(row, ColPopulation)); e != nil {
			return nil, rowError(t, row, e)
		}

		k.FIPS = append(k.FIPS, fips.Normalize(code, t.Field(row, colPopCountyName), t.Field(row, colPopStateName)))
		k.Values = append(k.Values, val)
	}

	return k, nil
}

// ElectionFromTable keeps the Republican presidential share for year. Rows without
// vote counts are skipped; a zero total gives a missing share.
func ElectionFromTable(t *cc.Table, year int) (*Keyed, error) {
	if e := t.Require(colElYear, colElState, colElCounty, colElFIPS, colElOffice, colElParty,
		colElCandVotes, colElTotalVotes); e != nil {
		return nil, e
	}

	k := &Keyed{Name: ColRepublican}
	for row := 0; row < t.RowCount(); row++ {
		yr, e := cc.ParseInt(t.Field(row, colElYear))
		if e != nil {
			return nil, rowError(t, row, e)
		}

		if !yr.Valid || yr.Int64 != int64(year) {
			continue
		}

		office := strings.ToLower(strings.TrimSpace(t.Field(row, colElOffice)))
		party := strings.ToLower(strings.TrimSpace(t.Field(row, colElParty)))
		if party != republican || !hasString(office, presidentOffices) {
			continue
		}

		code, e := fips.Parse(t.Field(row, colElFIPS))
		if e != nil {
			code = fips.Unknown
		}

		// boroughs without a code still match by name
		if code = fips.Normalize(code, t.Field(row, colElCounty), t.Field(row, colElState)); !code.Valid() {
			k.Skipped++
			continue
		}

		var cand, total null.Float
		if cand, e = cc.ParseFloat(t.Field(row, colElCandVotes)); e != nil {
			return nil, rowError(t, row, e)
		}

		if total, e = cc.ParseFloat(t.Field(row, colElTotalVotes)); e != nil {
			return nil, rowError(t, row, e)
		}

		if !cand.Valid || !total.Valid {
			k.Skipped++
			continue
		}

		share := null.Float{}
		if total.Float64 > 0 {
			share = null.FloatFrom(cand.Float64 / total.Float64)
		}

		k.FIPS = append(k.FIPS, code)
		k.Values = append(k.Values, share)
	}

	return k, nil
}

func RatesFromTable(t *cc.Table, schema RateSchema) (*Keyed, error) {
	if e := t.Require(schema.State, schema.County, schema.Value); e != nil {
		return nil, e
	}

	haveNames := schema.CountyName != "" && schema.StateName != "" && t.Has(schema.CountyName) && t.Has(schema.StateName)

	k := &Keyed{Name: schema.Name}
	for row := 0; row < t.RowCount(); row++ {
		code, e := fips.PartsFromStrings(t.Field(row, schema.State), t.Field(row, schema.County))
		// state totals would be ranked alongside the counties
		if e != nil || code.County() == 0 {
			k.Skipped++
			continue
		}

		var countyName, stateName string
		if haveNames {
			countyName, stateName = t.Field(row, schema.CountyName), t.Field(row, schema.StateName)
		}

		var val null.Float
		if val, e = cc.ParseFloat(t.Field(row, schema.Value)); e != nil {
			return nil, rowError(t, row, e)
		}

		k.FIPS = append(k.FIPS, fips.Normalize(code, countyName, stateName))
		k.Values = append(k.Values, val)
	}

	return k, nil
}

func (c *Cases) Len() int {
	return len(c.Date)
}

// Frame returns the case columns in source order, with fips in its normalized form.
func (c *Cases) Frame() (*cc.Frame, error) {
	codes := make([]string, c.Len())
	for ind, code := range c.FIPS {
		codes[ind] = code.String()
	}

	var cols []*cc.Col
	for _, nd := range []struct {
		name string
		data any
	}{
		{colDate, c.Date},
		{colCounty, c.County},
		{colState, c.State},
		{colFIPS, codes},
		{colCases, c.Cases},
		{colDeaths, c.Deaths},
	} {
		col, e := cc.NewCol(nd.name, nd.data)
		if e != nil {
			return nil, e
		}

		cols = append(cols, col)
	}

	return cc.NewFrame(cols...)
}

func (k *Keyed) Len() int {
	return len(k.FIPS)
}

func rowError(t *cc.Table, row int, e error) error {
	// +2: one for the header, one for 1-based lines
	return fmt.Errorf("%s: line %d: %w", t.Name(), row+2, e)
}

func hasString(needle string, haystack []string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}

	return false
}
