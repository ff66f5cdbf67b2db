package mem

import (
	"fmt"

	cc "github.com/invertedv/covidcounty"
	"github.com/invertedv/covidcounty/fips"
	"gopkg.in/guregu/null.v3"
)

// LeftJoin looks up every key in r. The result has one entry per key; keys not in r,
// and invalid keys, get missing.
func LeftJoin(keys []fips.Code, r *Reduced) (joined []null.Float, matched int) {
	joined = make([]null.Float, len(keys))
	for ind, k := range keys {
		if !k.Valid() {
			continue
		}

		if v, ok := r.Value(k); ok {
			joined[ind] = v
			matched++
		}
	}

	return joined, matched
}

// Join appends r to df as a column named r.Name(). keys holds the identifier of each row of df.
// The row count of df does not change.
func Join(df *cc.Frame, keys []fips.Code, r *Reduced) (matched int, err error) {
	if len(keys) != df.RowCount() {
		return 0, fmt.Errorf("join %s: %d keys for %d rows", r.Name(), len(keys), df.RowCount())
	}

	var joined []null.Float
	joined, matched = LeftJoin(keys, r)

	var col *cc.Col
	if col, err = cc.NewCol(r.Name(), joined); err != nil {
		return 0, err
	}

	if err = df.AppendColumn(col); err != nil {
		return 0, err
	}

	return matched, nil
}
