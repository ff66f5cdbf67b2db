package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/invertedv/covidcounty/fips"
)

// series is one county's rows in date order
type series struct {
	rows []int // row numbers of the input
	days []int // days since the epoch, parallel to rows

	pos map[int]int // day -> position in rows
}

// index maps each county to its series. Rows without a valid identifier are not indexed.
type index map[fips.Code]*series

func dayNumber(dt time.Time) int {
	y, m, d := dt.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func buildIndex(codes []fips.Code, dates []time.Time) (index, error) {
	idx := make(index)
	for row, code := range codes {
		if !code.Valid() {
			continue
		}

		s, ok := idx[code]
		if !ok {
			s = &series{pos: make(map[int]int)}
			idx[code] = s
		}

		s.rows = append(s.rows, row)
	}

	for code, s := range idx {
		sort.SliceStable(s.rows, func(i, j int) bool { return dates[s.rows[i]].Before(dates[s.rows[j]]) })

		s.days = make([]int, len(s.rows))
		for p, row := range s.rows {
			day := dayNumber(dates[row])
			if _, dup := s.pos[day]; dup {
				return nil, fmt.Errorf("county %s has more than one row for %s", code, dates[row].Format("2006-01-02"))
			}

			s.days[p] = day
			s.pos[day] = p
		}
	}

	return idx, nil
}

// back returns the position k steps before p: k calendar days earlier, or k rows earlier.
func (s *series) back(p, k int, mode Mode) (int, bool) {
	if mode == ByOrdinal {
		if p-k < 0 {
			return 0, false
		}

		return p - k, true
	}

	q, ok := s.pos[s.days[p]-k]

	return q, ok
}

// gaps counts consecutive rows more than one day apart
func (s *series) gaps() int {
	n := 0
	for p := 1; p < len(s.days); p++ {
		if s.days[p]-s.days[p-1] > 1 {
			n++
		}
	}

	return n
}

// first returns the first position meeting ok, or -1.
func (s *series) first(ok func(row int) bool) int {
	for p, row := range s.rows {
		if ok(row) {
			return p
		}
	}

	return -1
}

// reordered is true if the source rows were not already in date order
func (s *series) reordered() bool {
	return !sort.IntsAreSorted(s.rows)
}
