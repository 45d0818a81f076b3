// Package jdbc provides the database destination. It resolves a
// database/sql driver, loading it from a plugin when configured, and writes
// record batches through the batched statement writer.
package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/base"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/extract"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/loader"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/query"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/writer"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"

	// built-in drivers
	_ "github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/drivers"
)

const version = "1.0.0"

// Destination writes records into one database table.
type Destination struct {
	*base.BaseConnector

	cfg        config.JDBCSinkConfig
	writerOpts []writer.Option
	opener     loader.Opener

	db      *sql.DB
	writer  *writer.Writer
	dialect query.Dialect
	policy  config.ErrorPolicy

	mu          sync.RWMutex
	initialized bool
}

// Option configures a Destination.
type Option func(*Destination)

// WithWriterOptions passes options through to the statement writer.
func WithWriterOptions(opts ...writer.Option) Option {
	return func(d *Destination) { d.writerOpts = append(d.writerOpts, opts...) }
}

// WithOpener replaces the plugin opener used for driver artifacts.
func WithOpener(o loader.Opener) Option {
	return func(d *Destination) { d.opener = o }
}

// NewDestination creates a destination. The configuration is validated here;
// nothing is connected until Initialize.
func NewDestination(name string, cfg config.JDBCSinkConfig, opts ...Option) (*Destination, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Destination{
		BaseConnector: base.NewBaseConnector(name, core.ConnectorTypeDestination, version),
		cfg:           cfg,
		opener:        loader.PluginOpener{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Initialize resolves the driver, opens and pings the database and builds
// the writer.
func (d *Destination) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return errors.New(errors.ErrorTypeValidation, "destination already initialized")
	}

	class := d.cfg.Driver.Class
	if d.cfg.Driver.Artifact != "" {
		ok, err := loader.LoadWith(d.opener, class, d.cfg.Driver.Artifact)
		if err != nil {
			return err
		}
		if !ok {
			d.Logger().Info("driver artifact not loaded, using the registered driver if any",
				zap.String("driver", class),
				zap.String("artifact", d.cfg.Driver.Artifact))
		}
	}
	if !loader.Registered(class) {
		return errors.New(errors.ErrorTypeDriver, fmt.Sprintf("no database driver named %s is registered", class))
	}

	dialect, err := d.resolveDialect()
	if err != nil {
		return err
	}
	fields, err := config.ParseFields(d.cfg.Fields)
	if err != nil {
		return err
	}
	policyName, err := config.ParseErrorPolicy(d.cfg.ErrorPolicy)
	if err != nil {
		return err
	}
	policy, err := writer.PolicyFor(policyName)
	if err != nil {
		return err
	}

	db, err := sql.Open(class, d.cfg.ConnectionURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database")
	}
	if err := d.ping(ctx, db); err != nil {
		_ = db.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database")
	}

	extractor := extract.New(fields)
	var builder writer.StatementBuilder
	if d.cfg.Batching {
		builder = writer.NewBatchedBuilder(d.cfg.Table, extractor, dialect)
	} else {
		builder = writer.NewSingleBuilder(d.cfg.Table, extractor, dialect)
	}

	opts := append([]writer.Option{writer.WithTimeout(d.cfg.Timeouts.Request)}, d.writerOpts...)
	d.db = db
	d.dialect = dialect
	d.policy = policyName
	d.writer = writer.NewWriter(db, d.cfg.Table, builder, policy, opts...)
	d.initialized = true

	d.StartHealthChecks(ctx, &d.cfg.BaseConfig, d.Ping)

	d.Logger().Info("jdbc destination initialized",
		zap.String("driver", class),
		zap.String("table", d.cfg.Table),
		zap.String("dialect", dialect.Name),
		zap.String("fields", fields.String()),
		zap.String("error_policy", string(policyName)),
		zap.Bool("batching", d.cfg.Batching))
	return nil
}

func (d *Destination) resolveDialect() (query.Dialect, error) {
	if d.cfg.Dialect != "" {
		return query.ParseDialect(d.cfg.Dialect)
	}
	return query.DialectFor(d.cfg.Driver.Class), nil
}

func (d *Destination) ping(ctx context.Context, db *sql.DB) error {
	if t := d.cfg.Timeouts.Connection; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return db.PingContext(ctx)
}

// Ping checks the database connection.
func (d *Destination) Ping(ctx context.Context) error {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return errors.New(errors.ErrorTypeConnection, "destination not initialized")
	}
	return d.ping(ctx, db)
}

// Write inserts records. See writer.Writer.Write for the failure semantics.
func (d *Destination) Write(ctx context.Context, records []*models.Record) error {
	d.mu.RLock()
	w := d.writer
	d.mu.RUnlock()
	if w == nil {
		return errors.New(errors.ErrorTypeValidation, "destination not initialized")
	}
	return w.Write(ctx, records)
}

// Health reports the periodic check result and pings the database.
func (d *Destination) Health(ctx context.Context) error {
	if err := d.BaseConnector.Health(ctx); err != nil {
		return err
	}
	if err := d.Ping(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "database ping failed")
	}
	return nil
}

// Metrics adds the sink settings to the base metrics.
func (d *Destination) Metrics() map[string]interface{} {
	m := d.BaseConnector.Metrics()
	m["table"] = d.cfg.Table
	m["driver"] = d.cfg.Driver.Class
	m["batching"] = d.cfg.Batching

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.initialized {
		m["dialect"] = d.dialect.Name
		m["error_policy"] = string(d.policy)
	}
	if d.db != nil {
		stats := d.db.Stats()
		m["open_connections"] = stats.OpenConnections
		m["in_use_connections"] = stats.InUse
	}
	return m
}

// Close stops health checks and closes the database.
func (d *Destination) Close(_ context.Context) error {
	d.CloseBase()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	d.writer = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close database")
	}
	return nil
}
