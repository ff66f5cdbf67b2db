package covidcounty

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/stdlib"
	_ "modernc.org/sqlite"
)

// All code interacting with a database is here

var (
	//go:embed skeletons/clickhouse/create.txt
	chCreate string
	//go:embed skeletons/postgres/create.txt
	pgCreate string
	//go:embed skeletons/sqlite/create.txt
	slCreate string

	//go:embed skeletons/clickhouse/types.txt
	chTypes string
	//go:embed skeletons/postgres/types.txt
	pgTypes string
	//go:embed skeletons/sqlite/types.txt
	slTypes string

	//go:embed skeletons/clickhouse/fields.txt
	chFields string
	//go:embed skeletons/postgres/fields.txt
	pgFields string
	//go:embed skeletons/sqlite/fields.txt
	slFields string

	//go:embed skeletons/clickhouse/dropif.txt
	chDropIf string
	//go:embed skeletons/postgres/dropif.txt
	pgDropIf string
	//go:embed skeletons/sqlite/dropif.txt
	slDropIf string

	//go:embed skeletons/clickhouse/insert.txt
	chInsert string
	//go:embed skeletons/postgres/insert.txt
	pgInsert string
	//go:embed skeletons/sqlite/insert.txt
	slInsert string

	//go:embed skeletons/clickhouse/exists.txt
	chExists string
	//go:embed skeletons/postgres/exists.txt
	pgExists string
	//go:embed skeletons/sqlite/exists.txt
	slExists string
)

const (
	ch = "clickhouse"
	pg = "postgres"
	sl = "sqlite"
)

type Dialect struct {
	db      *sql.DB
	dialect string

	dtTypes []string
	dbTypes []string

	create string
	insert string
	dropIf string
	exists string
	fields string

	bufSize int // in MB
	bufRows int
}

// Connect opens a database for dialect. dsn is passed to the driver: a clickhouse:// URL,
// a postgres:// URL or a SQLite file name (":memory:" works).
func Connect(dialect, dsn string) (*sql.DB, error) {
	var (
		db *sql.DB
		e  error
	)

	switch strings.ToLower(dialect) {
	case ch:
		var opts *clickhouse.Options
		if opts, e = clickhouse.ParseDSN(dsn); e != nil {
			return nil, e
		}

		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
		db = clickhouse.OpenDB(opts)
	case pg:
		if db, e = sql.Open("pgx", dsn); e != nil {
			return nil, e
		}
	case sl:
		if db, e = sql.Open("sqlite", dsn); e != nil {
			return nil, e
		}
		// an in-memory SQLite database lives and dies with its connection
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database %s", dialect)
	}

	if e = db.Ping(); e != nil {
		_ = db.Close()
		return nil, e
	}

	return db, nil
}

func NewDialect(dialect string, db *sql.DB) (*Dialect, error) {
	dialect = strings.ToLower(dialect)

	d := &Dialect{db: db, dialect: dialect, bufSize: 1, bufRows: 1000}

	var types string
	switch d.dialect {
	case ch:
		d.create, d.fields, d.dropIf, d.insert, d.exists = chCreate, chFields, chDropIf, chInsert, chExists
		types = chTypes
	case pg:
		d.create, d.fields, d.dropIf, d.insert, d.exists = pgCreate, pgFields, pgDropIf, pgInsert, pgExists
		types = pgTypes
	case sl:
		d.create, d.fields, d.dropIf, d.insert, d.exists = slCreate, slFields, slDropIf, slInsert, slExists
		types = slTypes
	default:
		return nil, fmt.Errorf("no skeletons for database %s", dialect)
	}

	for _, lm := range strings.Split(types, "\n") {
		if strings.TrimSpace(lm) == "" {
			continue
		}

		t := strings.Split(lm, ",")
		if len(t) != 2 {
			return nil, fmt.Errorf("bad type line %q in NewDialect", lm)
		}

		if DTFromString(t[0]) == DTunknown {
			return nil, fmt.Errorf("unknown data type %s in NewDialect", t[0])
		}

		d.dtTypes = append(d.dtTypes, t[0])
		d.dbTypes = append(d.dbTypes, strings.TrimSpace(t[1]))
	}

	return d, nil
}

// ***************** Methods *****************

func (d *Dialect) Close() error {
	return d.db.Close()
}

// Create makes tableName with fields of the given types. orderBy is the sort key (ClickHouse)
// or indexed columns (Postgres, SQLite) and defaults to the first field.
func (d *Dialect) Create(tableName, orderBy string, fields []string, types []DataTypes, overwrite bool) error {
	if len(fields) == 0 || len(fields) != len(types) {
		return fmt.Errorf("need one type per field in Create, got %d fields and %d types", len(fields), len(types))
	}

	var (
		exists bool
		e      error
	)
	if exists, e = d.Exists(tableName); e != nil {
		return e
	}

	if exists && !overwrite {
		return fmt.Errorf("table %s exists", tableName)
	}

	if exists {
		if e = d.DropTable(tableName); e != nil {
			return e
		}
	}

	if orderBy == "" {
		orderBy = fields[0]
	}

	create := strings.ReplaceAll(d.create, "?TableName", tableName)
	create = strings.Replace(create, "?OrderBy", orderBy, 1)
	create = strings.ReplaceAll(create, "?IndexName", indexName(tableName))

	var flds []string
	for ind := 0; ind < len(fields); ind++ {
		if !validName(fields[ind]) {
			return fmt.Errorf("invalid field name %s", fields[ind])
		}

		var (
			dbType string
			ex     error
		)
		if dbType, ex = d.dbtype(types[ind]); ex != nil {
			return ex
		}

		field := strings.ReplaceAll(d.fields, "?Field", fields[ind])
		field = strings.ReplaceAll(strings.TrimSpace(field), "?Type", dbType)
		flds = append(flds, field)
	}

	create = strings.Replace(create, "?fields", strings.Join(flds, ","), 1)

	if strings.Contains(create, "?") {
		return fmt.Errorf("create still has placeholders: %s", create)
	}

	return d.execAll(create)
}

// CreateTable makes a table with df's columns and types.
func (d *Dialect) CreateTable(tableName, orderBy string, overwrite bool, df *Frame) error {
	noDesc := strings.ReplaceAll(strings.ReplaceAll(orderBy, "DESC", ""), " ", "")
	if orderBy != "" && !df.HasColumns(strings.Split(noDesc, ",")...) {
		return fmt.Errorf("not all columns present in OrderBy %s", noDesc)
	}

	return d.Create(tableName, noDesc, df.ColumnNames(), df.ColumnTypes(), overwrite)
}

func (d *Dialect) DialectName() string {
	return d.dialect
}

func (d *Dialect) DropTable(tableName string) error {
	return d.execAll(strings.ReplaceAll(d.dropIf, "?TableName", tableName))
}

func (d *Dialect) Exists(tableName string) (bool, error) {
	qry := strings.TrimSpace(strings.ReplaceAll(d.exists, "?TableName", tableName))

	var exist any
	if e := d.db.QueryRow(qry).Scan(&exist); e != nil {
		return false, fmt.Errorf("checking for table %s: %w", tableName, e)
	}

	switch x := exist.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case uint8:
		return x == 1, nil
	case int64:
		return x > 0, nil
	default:
		return false, fmt.Errorf("unexpected result %v checking for table %s", exist, tableName)
	}
}

func (d *Dialect) InsertValues(tableName string, values []byte) error {
	qry := strings.ReplaceAll(d.insert, "?TableName", tableName)
	_, e := d.db.Exec(strings.TrimRight(qry, "\n") + string(values))

	return e
}

// IterSave inserts the rows of df in batches bounded by bufSize megabytes and bufRows rows.
func (d *Dialect) IterSave(tableName string, df *Frame) error {
	const (
		bSep   = byte(',')
		bOpen  = byte('(')
		bClose = byte(')')
	)

	var buffer []byte
	bsize := d.bufSize * 1024 * 1024
	rows := 0

	for row := 0; row < df.RowCount(); row++ {
		if buffer != nil {
			buffer = append(buffer, bSep)
		}

		buffer = append(buffer, bOpen)
		for _, x := range df.Row(row) {
			buffer = append(append(buffer, []byte(d.ToString(x))...), bSep)
		}

		buffer[len(buffer)-1] = bClose
		rows++

		if (bsize > 0 && len(buffer) >= bsize) || rows >= d.bufRows {
			if e := d.InsertValues(tableName, buffer); e != nil {
				return e
			}

			buffer, rows = nil, 0
		}
	}

	if buffer != nil {
		if e := d.InsertValues(tableName, buffer); e != nil {
			return e
		}
	}

	return nil
}

// RowCount returns the number of rows in tableName.
func (d *Dialect) RowCount(tableName string) (int, error) {
	var n int64
	if e := d.db.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", tableName)).Scan(&n); e != nil {
		return 0, e
	}

	return int(n), nil
}

// Save writes df to tableName, replacing it if overwrite is set.
func (d *Dialect) Save(tableName, orderBy string, overwrite bool, df *Frame) error {
	if e := d.CreateTable(tableName, orderBy, overwrite, df); e != nil {
		return e
	}

	return d.IterSave(tableName, df)
}

// ToString returns a string version of val that can be placed into SQL
func (d *Dialect) ToString(val any) string {
	switch x := val.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case time.Time:
		return "'" + x.Format(DateFormat) + "'"
	default:
		panic(fmt.Errorf("unsupported type %T in Dialect.ToString", val))
	}
}

func (d *Dialect) dbtype(dt DataTypes) (string, error) {
	pos := position(dt.String(), d.dtTypes)
	if pos < 0 {
		return "", fmt.Errorf("cannot find type %s to map to %s", dt, d.dialect)
	}

	return d.dbTypes[pos], nil
}

// execAll runs each ;-separated statement of qry
func (d *Dialect) execAll(qry string) error {
	for _, stmt := range strings.Split(qry, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		if _, e := d.db.Exec(stmt); e != nil {
			return fmt.Errorf("%w: %s", e, strings.TrimSpace(stmt))
		}
	}

	return nil
}

func indexName(tableName string) string {
	base := tableName
	if ind := strings.LastIndex(base, "."); ind >= 0 {
		base = base[ind+1:]
	}

	return fmt.Sprintf("idx_%s_%s", base, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
