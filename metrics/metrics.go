// Package metrics derives per-county growth measures from the enriched case table.
//
// Every row is compared only with rows of the same county. The rows of each county are
// indexed once, by date, so looking up "the row a week ago" or "the first row with 100
// cases" doesn't rescan the table.
package metrics

import (
	"fmt"
	"math"
	"strings"
	"time"

	cc "github.com/invertedv/covidcounty"
	"github.com/invertedv/covidcounty/fips"
	"gopkg.in/guregu/null.v3"
)

// Mode selects how "k days earlier" is found.
type Mode int

const (
	// ByCalendar finds the row dated k days before. A gap in the feed gives a missing value.
	ByCalendar Mode = iota
	// ByOrdinal takes the row k positions earlier in the county's date order, whatever its date.
	ByOrdinal
)

func (m Mode) String() string {
	if m == ByOrdinal {
		return "ordinal"
	}

	return "calendar"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "calendar", "date":
		return ByCalendar, nil
	case "ordinal", "row":
		return ByOrdinal, nil
	default:
		return ByCalendar, fmt.Errorf("unknown offset mode %q", s)
	}
}

const (
	CaseThreshold        = 100
	PenetrationThreshold = 0.0005

	dayOffset  = 1
	weekOffset = 7
)

// output column names
const (
	ColPenetration          = "case_penetration"
	ColDayIndex             = "days_since_first_case"
	ColDaysSince100         = "days_since_100th_case"
	ColDaysSincePenetration = "days_since_05pct_penetration"
	ColDoDAbs               = "case_growth_dod_abs"
	ColDoDRel               = "case_growth_dod_rel"
	ColWoWAbs               = "case_growth_wow_abs"
	ColWoWRel               = "case_growth_wow_rel"
	ColDaysToDouble         = "days_to_double"
)

// Input is the slice of the case table the metrics need. All slices have one entry per row.
type Input struct {
	FIPS       []fips.Code
	Date       []time.Time
	Cases      []null.Int
	Population []null.Float
}

type Result struct {
	Penetration          []null.Float
	DayIndex             []null.Int
	DaysSince100         []null.Int
	DaysSincePenetration []null.Int
	DoDAbs               []null.Int
	DoDRel               []null.Float
	WoWAbs               []null.Int
	WoWRel               []null.Float
	DaysToDouble         []null.Float
}

// Summary describes the index built for a run.
type Summary struct {
	Counties  int
	Gaps      int // consecutive rows of a county more than a day apart
	Reordered int // counties whose rows were not in date order in the source
	Unindexed int // rows without an identifier
}

func (in *Input) check() error {
	n := len(in.FIPS)
	if len(in.Date) != n || len(in.Cases) != n || len(in.Population) != n {
		return fmt.Errorf("metrics input lengths differ: fips %d, date %d, cases %d, population %d",
			n, len(in.Date), len(in.Cases), len(in.Population))
	}

	return nil
}

// Derive computes every metric for every row. Undefined arithmetic gives a missing value for
// that metric only; the only errors are malformed input.
func Derive(in *Input, mode Mode) (*Result, *Summary, error) {
	if e := in.check(); e != nil {
		return nil, nil, e
	}

	var (
		idx index
		e   error
	)
	if idx, e = buildIndex(in.FIPS, in.Date); e != nil {
		return nil, nil, e
	}

	n := len(in.FIPS)
	r := &Result{
		Penetration:          make([]null.Float, n),
		DayIndex:             make([]null.Int, n),
		DaysSince100:         make([]null.Int, n),
		DaysSincePenetration: make([]null.Int, n),
		DoDAbs:               make([]null.Int, n),
		DoDRel:               make([]null.Float, n),
		WoWAbs:               make([]null.Int, n),
		WoWRel:               make([]null.Float, n),
		DaysToDouble:         make([]null.Float, n),
	}

	for row := 0; row < n; row++ {
		r.Penetration[row] = Ratio(in.Cases[row], in.Population[row])
	}

	sum := &Summary{Counties: len(idx)}
	for _, s := range idx {
		sum.Gaps += s.gaps()
		if s.reordered() {
			sum.Reordered++
		}

		first100 := s.first(func(row int) bool {
			return in.Cases[row].Valid && in.Cases[row].Int64 >= CaseThreshold
		})
		firstPen := s.first(func(row int) bool {
			return r.Penetration[row].Valid && r.Penetration[row].Float64 >= PenetrationThreshold
		})

		for p, row := range s.rows {
			r.DayIndex[row] = null.IntFrom(int64(p + 1))
			r.DaysSince100[row] = since(p, first100)
			r.DaysSincePenetration[row] = since(p, firstPen)

			if q, ok := s.back(p, dayOffset, mode); ok {
				prior := in.Cases[s.rows[q]]
				r.DoDAbs[row] = Diff(in.Cases[row], prior)
				r.DoDRel[row] = Growth(in.Cases[row], prior)
			}

			if q, ok := s.back(p, weekOffset, mode); ok {
				prior := in.Cases[s.rows[q]]
				r.WoWAbs[row] = Diff(in.Cases[row], prior)
				r.WoWRel[row] = Growth(in.Cases[row], prior)
			}

			r.DaysToDouble[row] = DaysToDouble(r.WoWRel[row])
		}
	}

	for _, code := range in.FIPS {
		if !code.Valid() {
			sum.Unindexed++
		}
	}

	return r, sum, nil
}

// since is p - threshold position, missing until the threshold is reached.
func since(p, firstPos int) null.Int {
	if firstPos < 0 || p < firstPos {
		return null.Int{}
	}

	return null.IntFrom(int64(p - firstPos))
}

// Ratio is num/den, missing if either is missing or den is 0.
func Ratio(num null.Int, den null.Float) null.Float {
	if !num.Valid || !den.Valid || den.Float64 == 0 {
		return null.Float{}
	}

	return finite(float64(num.Int64) / den.Float64)
}

func Diff(x, prior null.Int) null.Int {
	if !x.Valid || !prior.Valid {
		return null.Int{}
	}

	return null.IntFrom(x.Int64 - prior.Int64)
}

// Growth is x/prior - 1, missing if prior is 0.
func Growth(x, prior null.Int) null.Float {
	if !x.Valid || !prior.Valid || prior.Int64 == 0 {
		return null.Float{}
	}

	return finite(float64(x.Int64)/float64(prior.Int64) - 1)
}

// DaysToDouble converts weekly growth to a daily compounding rate and returns ln 2 / ln(1+daily).
// It is missing when weekly growth is missing or at most -1, or when the case count isn't growing.
func DaysToDouble(weekly null.Float) null.Float {
	if !weekly.Valid || weekly.Float64 <= -1 {
		return null.Float{}
	}

	daily := math.Pow(1+weekly.Float64, 1.0/weekOffset) - 1
	if daily <= -1 {
		return null.Float{}
	}

	den := math.Log(1 + daily)
	if den <= 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return null.Float{}
	}

	return finite(math.Ln2 / den)
}

func finite(x float64) null.Float {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return null.Float{}
	}

	return null.FloatFrom(x)
}

// Columns returns the metrics as named columns in output order.
func (r *Result) Columns() ([]*cc.Col, error) {
	var cols []*cc.Col
	for _, nd := range []struct {
		name string
		data any
	}{
		{ColPenetration, r.Penetration},
		{ColDayIndex, r.DayIndex},
		{ColDaysSince100, r.DaysSince100},
		{ColDaysSincePenetration, r.DaysSincePenetration},
		{ColDoDAbs, r.DoDAbs},
		{ColDoDRel, r.DoDRel},
		{ColWoWAbs, r.WoWAbs},
		{ColWoWRel, r.WoWRel},
		{ColDaysToDouble, r.DaysToDouble},
	} {
		col, e := cc.NewCol(nd.name, nd.data)
		if e != nil {
			return nil, e
		}

		cols = append(cols, col)
	}

	return cols, nil
}
