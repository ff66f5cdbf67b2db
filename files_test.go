package covidcounty

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestFiles_Load(t *testing.T) {
	f, e := NewFiles()
	require.Nil(t, e)

	src := "\ufeffdate,county,state,fips,cases,deaths\n" +
		"2020-03-01,Autauga,Alabama,01001,1,0\n" +
		"2020-03-01,\"Doña Ana, \"\"X\"\"\",New Mexico,35013,2,\n"

	tbl, e := f.Load("cases", strings.NewReader(src), "date", "fips")
	require.Nil(t, e)
	assert.Equal(t, "cases", tbl.Name())
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, "date", tbl.Header()[0])
	assert.Equal(t, "01001", tbl.Field(0, "fips"))
	assert.Equal(t, `Doña Ana, "X"`, tbl.Field(1, "county"))
	assert.Equal(t, "", tbl.Field(1, "deaths"))
	assert.Panics(t, func() { tbl.Field(0, "population") })

	_, e = f.Load("cases", strings.NewReader(src), "date", "population", "votes")
	assert.True(t, errors.Is(e, ErrMissingColumn))
	assert.Contains(t, e.Error(), "population, votes")

	_, e = f.Load("cases", strings.NewReader("a,b\n1,2,3\n"))
	assert.NotNil(t, e)

	_, e = f.Load("empty", strings.NewReader(""))
	assert.NotNil(t, e)
}

func TestFiles_Encoding(t *testing.T) {
	latin, e := charmap.ISO8859_1.NewEncoder().String("STNAME,CTYNAME\nNew Mexico,Doña Ana County\n")
	require.Nil(t, e)

	plain, e := NewFiles()
	require.Nil(t, e)
	tbl, e := plain.Load("census", strings.NewReader(latin))
	require.Nil(t, e)
	assert.NotEqual(t, "Doña Ana County", tbl.Field(0, "CTYNAME"))

	f, e := NewFiles(FileEncoding(charmap.ISO8859_1))
	require.Nil(t, e)
	tbl, e = f.Load("census", strings.NewReader(latin))
	require.Nil(t, e)
	assert.Equal(t, "Doña Ana County", tbl.Field(0, "CTYNAME"))
}

func TestFiles_Options(t *testing.T) {
	_, e := NewFiles(FileSep('"'))
	assert.NotNil(t, e)

	_, e = NewFiles(FileDateFormat(""))
	assert.NotNil(t, e)

	f, e := NewFiles(FileSep('|'), FileDateFormat("20060102"))
	require.Nil(t, e)

	var buf bytes.Buffer
	require.Nil(t, f.Write(&buf, testFrame(t)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "date|county|cases|rate", lines[0])
	assert.Equal(t, "20200301|Autauga|1|0.5", lines[1])
}

func TestFiles_Write(t *testing.T) {
	f, e := NewFiles()
	require.Nil(t, e)

	var buf bytes.Buffer
	require.Nil(t, f.Write(&buf, testFrame(t)))

	exp := "date,county,cases,rate\n" +
		"2020-03-01,Autauga,1,0.5\n" +
		"2020-03-02,Autauga,,0.0000001\n" +
		"2020-03-03,New York City,3,\n"
	assert.Equal(t, exp, buf.String())

	// what we write we can read back
	tbl, e := f.Load("round", &buf, "rate")
	require.Nil(t, e)
	assert.Equal(t, 3, tbl.RowCount())
	assert.Equal(t, "", tbl.Field(2, "rate"))
}

func TestFiles_Save(t *testing.T) {
	f, e := NewFiles()
	require.Nil(t, e)

	fileName := filepath.Join(t.TempDir(), "out", "covid_data.csv")
	require.Nil(t, f.Save(fileName, testFrame(t)))

	data, e := os.ReadFile(fileName)
	require.Nil(t, e)
	assert.True(t, strings.HasPrefix(string(data), "date,county,cases,rate\n"))
}
