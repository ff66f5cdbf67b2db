package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cc "github.com/invertedv/covidcounty"
	"github.com/invertedv/covidcounty/fips"
	"github.com/invertedv/covidcounty/mem"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const (
	casesCSV = `date,county,state,fips,cases,deaths
2020-03-01,Autauga,Alabama,01001,1,0
2020-03-01,New York City,New York,,10,1
2020-03-01,Unknown,Rhode Island,,2,
2020-03-02,Autauga,Alabama,1001.0,3,0
`
	populationCSV = `SUMLEV,STATE,COUNTY,STNAME,CTYNAME,POPESTIMATE2019
040,36,000,New York,New York,19453561
050,36,005,New York,Bronx County,1418207
050,36,047,New York,Kings County,2559903
050,36,061,New York,New York County,1628706
050,36,081,New York,Queens County,2253858
050,36,085,New York,Richmond County,476143
050,35,013,New Mexico,Doña Ana County,218195
`
	electionCSV = `year,state,state_po,county,FIPS,office,candidate,party,candidatevotes,totalvotes
2016,Alabama,AL,Autauga,1001,President,Donald Trump,republican,18172,24973
2016,Alabama,AL,Autauga,1001,President,Hillary Clinton,democrat,5936,24973
2012,Alabama,AL,Autauga,1001,President,Mitt Romney,republican,17379,23932
2016,New York,NY,Kings,36047,US President,Donald Trump,Republican,141044,704773
2016,New York,NY,Queens,NA,US President,Donald Trump,Republican,149341,609400
2016,Connecticut,CT,Statewide writein,NA,President,,republican,NA,NA
2016,Alaska,AK,District 99,2099,President,Donald Trump,republican,0,0
`
	insuranceCSV = `year,statefips,countyfips,state_name,county_name,PCTUI
2018,01,001,Alabama,Autauga County,8.9
2018,01,000,Alabama,,10.0
2018,36,061,New York,New York County,5.2
2018,36,047,New York,Kings County,6.8
2018,48,,Texas,,
`
)

func server(t *testing.T) *httptest.Server {
	latin, e := charmap.ISO8859_1.NewEncoder().String(populationCSV)
	require.Nil(t, e)

	files := map[string]string{
		"/cases.csv":      casesCSV,
		"/population.csv": latin,
		"/election.csv":   electionCSV,
		"/insurance.csv":  insuranceCSV,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func loader(srv *httptest.Server) *Loader {
	logger := log.New()
	logger.SetOutput(os.Stderr)

	return NewLoader(srv.Client(), log.NewEntry(logger))
}

func TestLoader_Cases(t *testing.T) {
	srv := server(t)
	c, e := loader(srv).Cases(context.Background(), srv.URL+"/cases.csv")
	require.Nil(t, e)

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []fips.Code{1001, fips.NYC, fips.Unknown, 1001}, c.FIPS)
	assert.False(t, c.Deaths[2].Valid)
	assert.Equal(t, int64(10), c.Cases[1].Int64)

	df, e := c.Frame()
	require.Nil(t, e)
	assert.Equal(t, []string{"date", "county", "state", "fips", "cases", "deaths"}, df.ColumnNames())

	col, e := df.Column("fips")
	require.Nil(t, e)
	assert.Equal(t, []string{"01001", "99999", "", "01001"}, col.AsString())
}

func TestLoader_Population(t *testing.T) {
	srv := server(t)
	k, e := loader(srv).Population(context.Background(), srv.URL+"/population.csv")
	require.Nil(t, e)

	assert.Equal(t, ColPopulation, k.Name)
	assert.Equal(t, 6, k.Len())

	// the state total is dropped
	assert.Equal(t, 1, k.Skipped)
	for ind := 0; ind < 5; ind++ {
		assert.Equal(t, fips.NYC, k.FIPS[ind])
	}
	assert.Equal(t, fips.Code(35013), k.FIPS[5])
	assert.Equal(t, 218195.0, k.Values[5].Float64)
}

func TestLoader_Election(t *testing.T) {
	srv := server(t)
	k, e := loader(srv).Election(context.Background(), srv.URL+"/election.csv", 2016)
	require.Nil(t, e)

	assert.Equal(t, ColRepublican, k.Name)
	assert.Equal(t, []fips.Code{1001, fips.NYC, fips.NYC, 2099}, k.FIPS)
	assert.InDelta(t, 18172.0/24973.0, k.Values[0].Float64, 1e-12)
	assert.InDelta(t, 149341.0/609400.0, k.Values[2].Float64, 1e-12)
	assert.False(t, k.Values[3].Valid)
	assert.Equal(t, 1, k.Skipped)

	k, e = loader(srv).Election(context.Background(), srv.URL+"/election.csv", 2012)
	require.Nil(t, e)
	assert.Equal(t, 1, k.Len())
}

func TestLoader_Rates(t *testing.T) {
	srv := server(t)
	k, e := loader(srv).Rates(context.Background(), srv.URL+"/insurance.csv", Insurance)
	require.Nil(t, e)

	assert.Equal(t, "pct_uninsured", k.Name)
	assert.Equal(t, []fips.Code{1001, fips.NYC, fips.NYC}, k.FIPS)
	assert.Equal(t, 8.9, k.Values[0].Float64)
	assert.Equal(t, 2, k.Skipped)
}

func TestRatesFromTable_StateRows(t *testing.T) {
	const povertyCSV = `State FIPS Code,County FIPS Code,Postal Code,Name,State Name,"Poverty Percent, All Ages"
1,0,AL,Alabama,Alabama,50.0
1,1,AL,Autauga County,Alabama,10.0
1,3,AL,Baldwin County,Alabama,20.0
`
	f, e := cc.NewFiles()
	require.Nil(t, e)
	tbl, e := f.Load("poverty", strings.NewReader(povertyCSV))
	require.Nil(t, e)

	k, e := RatesFromTable(tbl, Poverty)
	require.Nil(t, e)
	assert.Equal(t, []fips.Code{1001, 1003}, k.FIPS)
	assert.Equal(t, 1, k.Skipped)

	// the ranks are among counties only
	r, e := mem.By(k.Name, k.FIPS, k.Values, mem.Mean)
	require.Nil(t, e)
	rank := r.PercentileRank(k.Name + "_rank")

	v, ok := rank.Value(1001)
	require.True(t, ok)
	assert.Equal(t, 0.5, v.Float64)
	v, ok = rank.Value(1003)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Float64)
	_, ok = rank.Value(1000)
	assert.False(t, ok)
}

func TestLoader_Errors(t *testing.T) {
	srv := server(t)
	l := loader(srv)

	_, e := l.Cases(context.Background(), srv.URL+"/missing.csv")
	assert.NotNil(t, e)
	assert.Contains(t, e.Error(), "404")

	// the election file is not a case file
	_, e = l.Cases(context.Background(), srv.URL+"/election.csv")
	assert.True(t, errors.Is(e, cc.ErrMissingColumn))

	_, e = l.Rates(context.Background(), srv.URL+"/insurance.csv", Poverty)
	assert.True(t, errors.Is(e, cc.ErrMissingColumn))

	_, e = l.Cases(context.Background(), "")
	assert.NotNil(t, e)

	_, e = l.Cases(context.Background(), "ftp://example.com/cases.csv")
	assert.NotNil(t, e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, e = l.Cases(ctx, srv.URL+"/cases.csv")
	assert.NotNil(t, e)
}

func TestFetch_File(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "cases.csv")
	require.Nil(t, os.WriteFile(fileName, []byte(casesCSV), 0o644))

	l := NewLoader(nil, nil)
	for _, loc := range []string{fileName, "file://" + fileName} {
		c, e := l.Cases(context.Background(), loc)
		require.Nil(t, e, loc)
		assert.Equal(t, 4, c.Len())
	}

	_, e := l.Cases(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.NotNil(t, e)
}

func TestCasesFromTable_BadRows(t *testing.T) {
	f, e := cc.NewFiles()
	require.Nil(t, e)

	for _, bad := range []string{
		"date,county,state,fips,cases,deaths\nyesterday,Autauga,Alabama,01001,1,0\n",
		"date,county,state,fips,cases,deaths\n2020-03-01,Autauga,Alabama,abc,1,0\n",
		"date,county,state,fips,cases,deaths\n2020-03-01,Autauga,Alabama,01001,many,0\n",
	} {
		tbl, e := f.Load("cases", strings.NewReader(bad))
		require.Nil(t, e)

		_, e = CasesFromTable(tbl)
		assert.NotNil(t, e)
		assert.Contains(t, e.Error(), "line 2")
	}
}
