package covidcounty

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/guregu/null.v3"
)

// missingTokens are the field values source files use for "no data"
var missingTokens = []string{"", "na", "n/a", "nan", "null", "."}

// dateFormats are tried in order by ParseDate
var dateFormats = []string{"2006-01-02", "2006-1-2", "2006/01/02", "20060102", "01/02/2006", "1/2/2006",
	time.RFC3339}

func isMissing(x string) bool {
	return has(strings.ToLower(strings.TrimSpace(x)), missingTokens)
}

// ParseFloat converts a source field. Missing tokens give an invalid null.Float; anything
// else that doesn't parse is an error.
func ParseFloat(x string) (null.Float, error) {
	if isMissing(x) {
		return null.Float{}, nil
	}

	xs := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
	f, e := strconv.ParseFloat(xs, 64)
	if e != nil {
		return null.Float{}, fmt.Errorf("cannot parse %q as float: %w", x, e)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}, nil
	}

	return null.FloatFrom(f), nil
}

// ParseInt accepts integers written as floats ("12.0") since some sources do that.
func ParseInt(x string) (null.Int, error) {
	if isMissing(x) {
		return null.Int{}, nil
	}

	xs := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
	if i, e := strconv.ParseInt(xs, 10, 64); e == nil {
		return null.IntFrom(i), nil
	}

	f, e := strconv.ParseFloat(xs, 64)
	if e != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return null.Int{}, fmt.Errorf("cannot parse %q as int", x)
	}

	return null.IntFrom(int64(f)), nil
}

func ParseDate(x string) (time.Time, error) {
	xs := strings.TrimSpace(x)
	for _, format := range dateFormats {
		if dt, e := time.Parse(format, xs); e == nil {
			return dt, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse %q as date", x)
}
