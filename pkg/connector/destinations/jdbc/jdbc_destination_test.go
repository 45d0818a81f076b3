package jdbc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/registry"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/loader"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
	"github.com/hasnat/kafka-connect-jdbc/pkg/testutil"
)

var orderSchema = models.MustSchema("order",
	models.Field{Name: "id", Type: models.Int64},
	models.Field{Name: "customer", Type: models.String, Optional: true},
	models.Field{Name: "amount", Type: models.Float64, Optional: true},
)

func order(offset int64, id int64, customer string) *models.Record {
	s := models.NewStruct(orderSchema).MustPut("id", id)
	if customer != "" {
		s.MustPut("customer", customer)
	}
	return &models.Record{Topic: "orders", Offset: offset, Value: s}
}

// sinkConfig returns a config writing into a fresh sqlite file that already
// holds the orders table.
func sinkConfig(t *testing.T) (config.JDBCSinkConfig, *sql.DB) {
	t.Helper()
	prev := logger.Get()
	logger.Set(testutil.TestLogger(t))
	t.Cleanup(func() { logger.Set(prev) })

	dsn := testutil.SQLiteDSN(t)
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec("CREATE TABLE orders(id INTEGER NOT NULL, customer_name TEXT, amount REAL)")
	require.NoError(t, err)

	cfg := config.NewJDBCSinkConfig("orders-sink")
	cfg.ConnectionURL = dsn
	cfg.Table = "orders"
	cfg.Fields = "*,customer=customer_name"
	cfg.Driver.Class = "sqlite"
	cfg.Reliability.HealthCheck = false
	return cfg, db
}

func TestDestinationWritesRecords(t *testing.T) {
	cfg, db := sinkConfig(t)
	ctx := context.Background()

	d, err := NewDestination("orders-sink", cfg)
	require.NoError(t, err)
	require.NoError(t, d.Initialize(ctx))
	t.Cleanup(func() { _ = d.Close(ctx) })

	err = d.Write(ctx, []*models.Record{order(0, 1, "ann"), order(1, 2, ""), order(2, 3, "bob")})
	require.NoError(t, err)
	assert.Equal(t, 3, testutil.CountRows(t, db, "orders"))

	var name string
	require.NoError(t, db.QueryRow("SELECT customer_name FROM orders WHERE id = 3").Scan(&name))
	assert.Equal(t, "bob", name)

	require.NoError(t, d.Health(ctx))
	m := d.Metrics()
	assert.Equal(t, "question", m["dialect"])
	assert.Equal(t, "THROW", m["error_policy"])
}

func TestDestinationErrorPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		wantErr bool
	}{
		{name: "throw", policy: "THROW", wantErr: true},
		{name: "noop", policy: "NOOP"},
		{name: "swallow alias", policy: "swallow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, db := sinkConfig(t)
			cfg.ErrorPolicy = tt.policy
			cfg.Table = "missing_table"
			ctx := context.Background()

			d, err := NewDestination("orders-sink", cfg)
			require.NoError(t, err)
			require.NoError(t, d.Initialize(ctx))
			t.Cleanup(func() { _ = d.Close(ctx) })

			err = d.Write(ctx, []*models.Record{order(0, 1, "ann")})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeExecution))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 0, testutil.CountRows(t, db, "orders"))
		})
	}
}

func TestDestinationUnbatched(t *testing.T) {
	cfg, db := sinkConfig(t)
	cfg.Batching = false
	ctx := context.Background()

	d, err := NewDestination("orders-sink", cfg)
	require.NoError(t, err)
	require.NoError(t, d.Initialize(ctx))
	t.Cleanup(func() { _ = d.Close(ctx) })

	require.NoError(t, d.Write(ctx, []*models.Record{order(0, 1, "ann"), order(1, 2, "bob")}))
	assert.Equal(t, 2, testutil.CountRows(t, db, "orders"))
}

func TestDestinationInitializeFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.JDBCSinkConfig)
		wantType errors.ErrorType
	}{
		{
			name:     "unregistered driver",
			mutate:   func(c *config.JDBCSinkConfig) { c.Driver.Class = "com.example.NoSuchDriver" },
			wantType: errors.ErrorTypeDriver,
		},
		{
			name:     "unknown dialect",
			mutate:   func(c *config.JDBCSinkConfig) { c.Dialect = "cobol" },
			wantType: errors.ErrorTypeConfig,
		},
		{
			name:     "missing artifact",
			mutate:   func(c *config.JDBCSinkConfig) { c.Driver.Artifact = "/nonexistent/driver.so" },
			wantType: errors.ErrorTypeConfig,
		},
		{
			name:     "unreachable database",
			mutate:   func(c *config.JDBCSinkConfig) { c.ConnectionURL = "file:/nonexistent/dir/db.sqlite?mode=ro" },
			wantType: errors.ErrorTypeConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := sinkConfig(t)
			tt.mutate(&cfg)

			d, err := NewDestination("orders-sink", cfg)
			require.NoError(t, err)
			err = d.Initialize(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err), err.Error())
		})
	}
}

func TestNewDestinationValidates(t *testing.T) {
	cfg := config.NewJDBCSinkConfig("x")
	_, err := NewDestination("x", cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDestinationLoadsDriverFromArtifact(t *testing.T) {
	cfg, db := sinkConfig(t)
	cfg.Driver.Class = "com.example." + strings.ReplaceAll(t.Name(), "/", ".")
	cfg.Driver.Artifact = testutil.WriteFile(t, "driver.so", []byte("plugin"))

	opens := 0
	opener := loader.OpenerFunc(func(path, class string) (driver.Driver, error) {
		opens++
		return db.Driver(), nil
	})

	ctx := context.Background()
	d, err := NewDestination("orders-sink", cfg, WithOpener(opener))
	require.NoError(t, err)
	require.NoError(t, d.Initialize(ctx))
	t.Cleanup(func() { _ = d.Close(ctx) })

	assert.Equal(t, 1, opens)
	assert.Contains(t, loader.Loaded(), cfg.Driver.Class)
	require.NoError(t, d.Write(ctx, []*models.Record{order(0, 7, "cy")}))
	assert.Equal(t, 1, testutil.CountRows(t, db, "orders"))
}

func TestDestinationLifecycle(t *testing.T) {
	cfg, _ := sinkConfig(t)
	cfg.Reliability.HealthCheck = true
	cfg.Reliability.HealthInterval = 10 * time.Millisecond
	ctx := context.Background()

	d, err := NewDestination("orders-sink", cfg)
	require.NoError(t, err)

	assert.Error(t, d.Write(ctx, []*models.Record{order(0, 1, "")}))
	require.NoError(t, d.Initialize(ctx))
	assert.Error(t, d.Initialize(ctx))

	testutil.AssertEventually(t, func() bool {
		return d.Metrics()["health_check_count"].(int64) > 1
	}, time.Second, "health checks did not run")
	require.NoError(t, d.Health(ctx))

	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
	assert.Error(t, d.Health(ctx))
	assert.Error(t, d.Write(ctx, []*models.Record{order(0, 1, "")}))
}

func TestRegisteredAsJDBC(t *testing.T) {
	assert.Contains(t, registry.ListDestinations(), "jdbc")

	cfg, _ := sinkConfig(t)
	full := config.NewConfig("orders-sink")
	full.Sink = cfg
	dest, err := registry.CreateDestination("jdbc", full)
	require.NoError(t, err)
	assert.Equal(t, "orders-sink", dest.Name())
}
