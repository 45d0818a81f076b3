package loader

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/testutil"
)

// sqliteDriver returns the driver registered by modernc.org/sqlite.
func sqliteDriver(t *testing.T) driver.Driver {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.Driver()
}

func className(t *testing.T) string {
	return "test.loader." + strings.NewReplacer("/", ".", " ", "_").Replace(t.Name())
}

func artifact(t *testing.T) string {
	return testutil.WriteFile(t, "driver.so", []byte("not a real plugin"))
}

func quietLogs(t *testing.T) {
	prev := logger.Get()
	logger.Set(testutil.TestLogger(t))
	t.Cleanup(func() { logger.Set(prev) })
}

func TestLoadRegistersOnce(t *testing.T) {
	quietLogs(t)
	inner := sqliteDriver(t)
	var calls atomic.Int32
	opener := OpenerFunc(func(string, string) (driver.Driver, error) {
		calls.Add(1)
		return inner, nil
	})
	name := className(t)
	path := artifact(t)

	ok, err := LoadWith(opener, name, path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, Registered(name))
	assert.Contains(t, Loaded(), name)

	before := len(sql.Drivers())
	ok, err = LoadWith(opener, name, path)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, len(sql.Drivers()))
	assert.Equal(t, int32(1), calls.Load())

	w, found := Lookup(name)
	require.True(t, found)
	assert.Same(t, inner, w.Inner())
	assert.Equal(t, path, w.Artifact())
	assert.Equal(t, name, w.ClassName())
}

func TestLoadedDriverIsUsable(t *testing.T) {
	quietLogs(t)
	name := className(t)
	ok, err := LoadWith(OpenerFunc(func(string, string) (driver.Driver, error) {
		return sqliteDriver(t), nil
	}), name, artifact(t))
	require.NoError(t, err)
	require.True(t, ok)

	db, err := sql.Open(name, testutil.SQLiteDSN(t))
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	_, err = db.ExecContext(ctx, "CREATE TABLE t(a INTEGER)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t(a) VALUES(?)", 7)
	require.NoError(t, err)

	var a int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT a FROM t").Scan(&a))
	assert.Equal(t, 7, a)

	_, isWrapper := db.Driver().(*Driver)
	assert.True(t, isWrapper)
}

func TestLoadConcurrent(t *testing.T) {
	quietLogs(t)
	inner := sqliteDriver(t)
	var calls atomic.Int32
	opener := OpenerFunc(func(string, string) (driver.Driver, error) {
		calls.Add(1)
		return inner, nil
	})
	name := className(t)
	path := artifact(t)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := LoadWith(opener, name, path)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadFailuresReportFalse(t *testing.T) {
	quietLogs(t)
	tests := []struct {
		name   string
		opener Opener
	}{
		{name: "opener error", opener: OpenerFunc(func(string, string) (driver.Driver, error) {
			return nil, errors.New(errors.ErrorTypeDriver, "class not found")
		})},
		{name: "nil driver", opener: OpenerFunc(func(string, string) (driver.Driver, error) {
			return nil, nil
		})},
		{name: "opener panic", opener: OpenerFunc(func(string, string) (driver.Driver, error) {
			panic("boom")
		})},
		{name: "garbage plugin", opener: PluginOpener{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := className(t)
			ok, err := LoadWith(tt.opener, name, artifact(t))
			require.NoError(t, err)
			assert.False(t, ok)
			assert.False(t, Registered(name))
			_, found := Lookup(name)
			assert.False(t, found)
		})
	}
}

func TestLoadForeignName(t *testing.T) {
	quietLogs(t)
	called := false
	ok, err := LoadWith(OpenerFunc(func(string, string) (driver.Driver, error) {
		called = true
		return nil, nil
	}), "sqlite", artifact(t))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestLoadInvalidArtifact(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "missing file", path: "/nonexistent/driver.so"},
		{name: "directory", path: t.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Load(className(t), tt.path)
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}

	_, err := Load("", artifact(t))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

type ctxDriver struct {
	driver.Driver
	connectors atomic.Int32
}

func (d *ctxDriver) OpenConnector(name string) (driver.Connector, error) {
	d.connectors.Add(1)
	return &dsnConnector{d: d.Driver, dsn: name}, nil
}

type dsnConnector struct {
	d   driver.Driver
	dsn string
}

func (c *dsnConnector) Connect(context.Context) (driver.Conn, error) { return c.d.Open(c.dsn) }
func (c *dsnConnector) Driver() driver.Driver                        { return c.d }

func TestWrapperForwardsConnectors(t *testing.T) {
	inner := &ctxDriver{Driver: sqliteDriver(t)}
	w := Wrap("wrapped", "", inner)

	db := sql.OpenDB(mustConnector(t, w, testutil.SQLiteDSN(t)))
	defer db.Close()
	require.NoError(t, db.Ping())
	assert.Equal(t, int32(1), inner.connectors.Load())
	assert.Same(t, w, db.Driver())
}

func TestConnectorHonoursCancelledContext(t *testing.T) {
	w := Wrap("plain", "", sqliteDriver(t))
	c, err := w.OpenConnector(":memory:")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustConnector(t *testing.T, d *Driver, dsn string) driver.Connector {
	t.Helper()
	c, err := d.OpenConnector(dsn)
	require.NoError(t, err)
	return c
}

func TestSymbolName(t *testing.T) {
	assert.Equal(t, "Driver", SymbolName("org.postgresql.Driver"))
	assert.Equal(t, "NewDriver", SymbolName("NewDriver"))
}

func TestFromSymbol(t *testing.T) {
	inner := sqliteDriver(t)
	variable := inner

	tests := []struct {
		name    string
		sym     any
		wantErr bool
	}{
		{name: "pointer to interface", sym: &variable},
		{name: "constructor", sym: func() driver.Driver { return inner }},
		{name: "constructor with error", sym: func() (driver.Driver, error) { return inner, nil }},
		{name: "value", sym: inner},
		{name: "not a driver", sym: new(int), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := fromSymbol(tt.sym)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, inner, d)
		})
	}
}
