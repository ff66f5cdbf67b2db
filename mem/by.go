// Package mem reduces auxiliary county tables to one row per identifier and joins them
// onto the case table in memory.
package mem

import (
	"fmt"
	"sort"

	"github.com/invertedv/covidcounty/fips"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"
)

// Reducer collapses the valid values of one group. It is never called with an empty slice.
type Reducer func(x []float64) float64

func Sum(x []float64) float64 {
	return floats.Sum(x)
}

func Mean(x []float64) float64 {
	return stat.Mean(x, nil)
}

// Reduced holds exactly one value per identifier, sorted by identifier.
type Reduced struct {
	name string

	keys  []fips.Code
	vals  []null.Float
	index map[fips.Code]int
}

// By groups vals on keys and reduces each group. Missing values are left out of a group;
// a group with no valid values reduces to missing. Invalid keys are dropped.
func By(name string, keys []fips.Code, vals []null.Float, reduce Reducer) (*Reduced, error) {
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("By %s: %d keys and %d values", name, len(keys), len(vals))
	}

	if reduce == nil {
		return nil, fmt.Errorf("By %s: nil reducer", name)
	}

	groups := make(map[fips.Code][]float64)
	for ind, k := range keys {
		if !k.Valid() {
			continue
		}

		g, ok := groups[k]
		if !ok {
			g = []float64{}
		}

		if vals[ind].Valid {
			g = append(g, vals[ind].Float64)
		}

		groups[k] = g
	}

	r := &Reduced{name: name, index: make(map[fips.Code]int, len(groups))}
	for k := range groups {
		r.keys = append(r.keys, k)
	}

	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })

	r.vals = make([]null.Float, len(r.keys))
	for ind, k := range r.keys {
		r.index[k] = ind
		if g := groups[k]; len(g) > 0 {
			r.vals[ind] = null.FloatFrom(reduce(g))
		}
	}

	return r, nil
}

func (r *Reduced) Name() string {
	return r.name
}

func (r *Reduced) Len() int {
	return len(r.keys)
}

func (r *Reduced) Keys() []fips.Code {
	return r.keys
}

func (r *Reduced) Values() []null.Float {
	return r.vals
}

// Value returns the value for k. ok is false if k is not in the table.
func (r *Reduced) Value(k fips.Code) (val null.Float, ok bool) {
	var ind int
	if ind, ok = r.index[k]; !ok {
		return null.Float{}, false
	}

	return r.vals[ind], true
}

// PercentileRank returns a table with the same keys holding each value's rank divided by
// the number of valid values. Ties share their average rank. Missing stays missing.
func (r *Reduced) PercentileRank(name string) *Reduced {
	var order []int
	for ind, v := range r.vals {
		if v.Valid {
			order = append(order, ind)
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return r.vals[order[i]].Float64 < r.vals[order[j]].Float64 })

	out := &Reduced{
		name:  name,
		keys:  r.keys,
		vals:  make([]null.Float, len(r.keys)),
		index: r.index,
	}

	n := float64(len(order))
	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && r.vals[order[end]].Float64 == r.vals[order[start]].Float64 {
			end++
		}

		// ranks are 1-based: positions start..end-1 hold ranks start+1..end
		avgRank := float64(start+1+end) / 2.0
		for ind := start; ind < end; ind++ {
			out.vals[order[ind]] = null.FloatFrom(avgRank / n)
		}

		start = end
	}

	return out
}
