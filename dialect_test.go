package covidcounty

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// environment variables for the server tests, which are skipped if unset:
//   - host: database host
//   - user: database user
//   - password: database password
func dsns() map[string]string {
	out := map[string]string{sl: ":memory:"}

	host, user, pw := os.Getenv("host"), os.Getenv("user"), os.Getenv("password")
	if host == "" {
		return out
	}

	out[ch] = fmt.Sprintf("clickhouse://%s:%s@%s:9000/default", user, pw, host)
	out[pg] = fmt.Sprintf("postgres://%s:%s@%s:5432/postgres?sslmode=disable", user, pw, host)

	return out
}

func TestDialect_Save(t *testing.T) {
	for which, dsn := range dsns() {
		t.Run(which, func(t *testing.T) {
			db, e := Connect(which, dsn)
			require.Nil(t, e)

			dlct, e := NewDialect(which, db)
			require.Nil(t, e)
			defer func() { _ = dlct.Close() }()
			assert.Equal(t, which, dlct.DialectName())

			const table = "covid_test"
			require.Nil(t, dlct.Save(table, "county,date", true, testFrame(t)))

			exists, e := dlct.Exists(table)
			require.Nil(t, e)
			assert.True(t, exists)

			n, e := dlct.RowCount(table)
			require.Nil(t, e)
			assert.Equal(t, 3, n)

			// missing values land as NULL
			var nulls int64
			require.Nil(t, db.QueryRow("SELECT count(*) FROM covid_test WHERE cases IS NULL").Scan(&nulls))
			assert.Equal(t, int64(1), nulls)

			// existing table needs overwrite
			assert.NotNil(t, dlct.Save(table, "", false, testFrame(t)))

			// small batches give the same table
			dlct.bufRows = 2
			require.Nil(t, dlct.Save(table, "", true, testFrame(t)))
			n, e = dlct.RowCount(table)
			require.Nil(t, e)
			assert.Equal(t, 3, n)

			require.Nil(t, dlct.DropTable(table))
			exists, e = dlct.Exists(table)
			require.Nil(t, e)
			assert.False(t, exists)
		})
	}
}

func TestDialect_Errors(t *testing.T) {
	_, e := Connect("oracle", "")
	assert.NotNil(t, e)

	db, e := Connect(sl, ":memory:")
	require.Nil(t, e)
	defer func() { _ = db.Close() }()

	_, e = NewDialect("oracle", db)
	assert.NotNil(t, e)

	dlct, e := NewDialect(sl, db)
	require.Nil(t, e)

	assert.NotNil(t, dlct.CreateTable("t1", "state", true, testFrame(t)))
	assert.NotNil(t, dlct.Create("t1", "", []string{"bad name"}, []DataTypes{DTint}, true))
	assert.NotNil(t, dlct.Create("t1", "", []string{"a", "b"}, []DataTypes{DTint}, true))
}

func TestDialect_ToString(t *testing.T) {
	d := &Dialect{}
	assert.Equal(t, "NULL", d.ToString(nil))
	assert.Equal(t, "'O''Brien'", d.ToString("O'Brien"))
	assert.Equal(t, "0.5", d.ToString(0.5))
	assert.Equal(t, "42", d.ToString(int64(42)))
	assert.Panics(t, func() { d.ToString(true) })
}
