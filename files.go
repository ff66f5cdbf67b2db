package covidcounty

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
)

// All code reading and writing delimited files is here

const (
	Sep        = ','
	DateFormat = "2006-01-02"
	Header     = true
)

// ErrMissingColumn is returned when a file lacks a column the caller requires.
var ErrMissingColumn = errors.New("missing column")

type Files struct {
	Sep        rune
	DateFormat string
	Header     bool

	enc encoding.Encoding
}

type FileOpt func(f *Files) error

func NewFiles(opts ...FileOpt) (*Files, error) {
	f := &Files{
		Sep:        Sep,
		DateFormat: DateFormat,
		Header:     Header,
	}

	for _, opt := range opts {
		if e := opt(f); e != nil {
			return nil, e
		}
	}

	return f, nil
}

func FileSep(sep rune) FileOpt {
	return func(f *Files) error {
		if sep == '\n' || sep == '"' {
			return fmt.Errorf("illegal separator %q", sep)
		}

		f.Sep = sep

		return nil
	}
}

func FileDateFormat(format string) FileOpt {
	return func(f *Files) error {
		if format == "" {
			return fmt.Errorf("empty date format")
		}

		f.DateFormat = format

		return nil
	}
}

// FileEncoding decodes input from enc (e.g. charmap.ISO8859_1) to UTF-8.
func FileEncoding(enc encoding.Encoding) FileOpt {
	return func(f *Files) error {
		f.enc = enc
		return nil
	}
}

// Table is the raw text of a delimited file, addressed by header name.
type Table struct {
	name   string
	header []string
	index  map[string]int
	rows   [][]string
}

// Load reads all of r. The first row is the header; every name in required must be in it.
// name identifies the source in error messages.
func (f *Files) Load(name string, r io.Reader, required ...string) (*Table, error) {
	if f.enc != nil {
		r = f.enc.NewDecoder().Reader(r)
	}

	rdr := csv.NewReader(r)
	rdr.Comma = f.Sep
	rdr.FieldsPerRecord = -1
	rdr.LazyQuotes = true

	t := &Table{name: name, index: make(map[string]int)}
	for lineNo := 1; ; lineNo++ {
		line, e := rdr.Read()
		if e == io.EOF {
			break
		}

		if e != nil {
			return nil, fmt.Errorf("%s: line %d: %w", name, lineNo, e)
		}

		if t.header == nil {
			for ind, fld := range line {
				fld = strings.TrimSpace(strings.TrimPrefix(fld, "\ufeff"))
				t.header = append(t.header, fld)
				if _, dup := t.index[fld]; !dup {
					t.index[fld] = ind
				}
			}

			continue
		}

		if len(line) != len(t.header) {
			return nil, fmt.Errorf("%s: line %d has %d fields, header has %d", name, lineNo, len(line), len(t.header))
		}

		t.rows = append(t.rows, line)
	}

	if t.header == nil {
		return nil, fmt.Errorf("%s: no header", name)
	}

	if e := t.Require(required...); e != nil {
		return nil, e
	}

	return t, nil
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) RowCount() int {
	return len(t.rows)
}

func (t *Table) Header() []string {
	return t.header
}

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, col := range cols {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}

	if missing != nil {
		return fmt.Errorf("%s: %w: %s", t.name, ErrMissingColumn, strings.Join(missing, ", "))
	}

	return nil
}

// Field returns the value of col in row. col must have been checked with Require or Has.
func (t *Table) Field(row int, col string) string {
	ind, ok := t.index[col]
	if !ok {
		panic(fmt.Errorf("%s: %w: %s", t.name, ErrMissingColumn, col))
	}

	return t.rows[row][ind]
}

// Save writes df to fileName, creating the directory if needed.
func (f *Files) Save(fileName string, df *Frame) error {
	if dir := filepath.Dir(fileName); dir != "" {
		if e := os.MkdirAll(dir, 0o755); e != nil {
			return e
		}
	}

	var (
		file *os.File
		e    error
	)
	if file, e = os.Create(fileName); e != nil {
		return e
	}

	if e = f.Write(file, df); e != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", fileName, e)
	}

	return file.Close()
}

func (f *Files) Write(w io.Writer, df *Frame) error {
	wrt := csv.NewWriter(w)
	wrt.Comma = f.Sep

	if f.Header {
		if e := wrt.Write(df.ColumnNames()); e != nil {
			return e
		}
	}

	var cols []*Col
	for c := df.Next(true); c != nil; c = df.Next(false) {
		cols = append(cols, c)
	}

	line := make([]string, len(cols))
	for row := 0; row < df.RowCount(); row++ {
		for ind, c := range cols {
			if c.VectorType() == DTdate {
				line[ind] = c.AsDate()[row].Format(f.DateFormat)
				continue
			}

			line[ind] = c.ElementString(row)
		}

		if e := wrt.Write(line); e != nil {
			return e
		}
	}

	wrt.Flush()

	return wrt.Error()
}
