// Package fips builds the 5-digit county identifier shared by every input table.
//
// An identifier is the 2-digit state code followed by the 3-digit county code, held as
// a number. New York City is reported as one unit by the case data, so its five boroughs
// all map to the synthetic code NYC.
package fips

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Code is a county identifier. The zero value means "no identifier".
type Code int

const (
	Unknown Code = 0

	// NYC stands in for the five boroughs. It is outside every real state code.
	NYC Code = 99999
)

// ErrMissing is returned when a row has no code to work with.
var ErrMissing = errors.New("missing county code")

const (
	nycState      = "new york"
	nycCaseCounty = "new york city"
)

// boroughs are the NYC counties by name, without the " County" suffix
var boroughs = []string{"kings", "queens", "new york", "bronx", "richmond"}

// boroughCodes are the same counties by code
var boroughCodes = []Code{36005, 36047, 36061, 36081, 36085}

// FromParts joins a state and county code.
func FromParts(state, county int) (Code, error) {
	if state < 1 || state > 99 {
		return Unknown, fmt.Errorf("state code %d out of range", state)
	}

	if county < 0 || county > 999 {
		return Unknown, fmt.Errorf("county code %d out of range", county)
	}

	return Code(state*1000 + county), nil
}

// PartsFromStrings is FromParts for text fields such as "1" and "001".
func PartsFromStrings(state, county string) (Code, error) {
	var (
		s, c int
		e    error
	)
	if s, e = atoi(state); e != nil {
		return Unknown, fmt.Errorf("state code: %w", e)
	}

	if c, e = atoi(county); e != nil {
		return Unknown, fmt.Errorf("county code: %w", e)
	}

	return FromParts(s, c)
}

// Parse reads a full code such as "36061", "1001" or "1001.0".
func Parse(x string) (Code, error) {
	var (
		n int
		e error
	)
	if n, e = atoi(x); e != nil {
		return Unknown, e
	}

	if n < 1000 || n > int(NYC) {
		return Unknown, fmt.Errorf("code %d out of range", n)
	}

	return Code(n), nil
}

// IsNYCBorough reports whether countyName in stateName is one of the five boroughs.
func IsNYCBorough(countyName, stateName string) bool {
	if !strings.EqualFold(strings.TrimSpace(stateName), nycState) {
		return false
	}

	cn := strings.ToLower(strings.TrimSpace(countyName))
	cn = strings.TrimSpace(strings.TrimSuffix(cn, " county"))
	for _, b := range boroughs {
		if cn == b {
			return true
		}
	}

	return false
}

// Normalize applies the NYC collapse to code. countyName and stateName may be empty for
// tables that don't carry names; then the borough codes themselves are matched.
// State summary rows (county 0) are never collapsed.
func Normalize(code Code, countyName, stateName string) Code {
	if code.Valid() && code.County() == 0 {
		return code
	}

	if strings.EqualFold(strings.TrimSpace(stateName), nycState) &&
		strings.EqualFold(strings.TrimSpace(countyName), nycCaseCounty) {
		return NYC
	}

	if IsNYCBorough(countyName, stateName) {
		return NYC
	}

	for _, bc := range boroughCodes {
		if code == bc {
			return NYC
		}
	}

	return code
}

func (c Code) Valid() bool {
	return c >= 1000 && c <= NYC
}

func (c Code) State() int {
	return int(c) / 1000
}

func (c Code) County() int {
	return int(c) % 1000
}

// String is the zero-padded 5-digit form, or "" for an invalid code.
func (c Code) String() string {
	if !c.Valid() {
		return ""
	}

	return fmt.Sprintf("%05d", int(c))
}

func atoi(x string) (int, error) {
	xs := strings.TrimSpace(x)
	if xs == "" || strings.EqualFold(xs, "na") {
		return 0, ErrMissing
	}

	if n, e := strconv.Atoi(xs); e == nil {
		return n, nil
	}

	f, e := strconv.ParseFloat(xs, 64)
	if e != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("bad code %q", x)
	}

	return int(f), nil
}
