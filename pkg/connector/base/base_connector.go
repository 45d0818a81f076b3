// Package base provides the BaseConnector that connectors embed. It holds
// identity, a child logger and periodic health monitoring.
//
// # Usage
//
//	type MyConnector struct {
//	    *base.BaseConnector
//	    // connector-specific fields
//	}
//
//	func NewMyConnector() *MyConnector {
//	    return &MyConnector{
//	        BaseConnector: base.NewBaseConnector("my-connector", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
//
// The embedding connector calls StartHealthChecks from its Initialize with
// a function probing its external system, and CloseBase from its Close.
package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
)

// BaseConnector provides common functionality for all connectors.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	logger        *zap.Logger
	startTime     time.Time

	healthChecker *HealthChecker

	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	closeMutex sync.Mutex
}

// NewBaseConnector creates a new base connector with the specified name, type, and version.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		startTime:     time.Now(),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// StartHealthChecks runs check periodically when the config enables it.
// check should probe the external system, e.g. by pinging the database.
func (bc *BaseConnector) StartHealthChecks(ctx context.Context, cfg *config.BaseConfig, check func(ctx context.Context) error) {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	bc.ctx, bc.cancel = context.WithCancel(ctx)
	if !cfg.Reliability.HealthCheck || bc.healthChecker != nil {
		return
	}
	interval := cfg.Reliability.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	bc.healthChecker = NewHealthChecker(bc.name, interval)
	bc.healthChecker.SetCheckFunc(check)
	bc.healthChecker.Start(bc.ctx)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version),
		zap.Duration("health_interval", interval))
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// Logger returns the connector's logger
func (bc *BaseConnector) Logger() *zap.Logger {
	return bc.logger
}

// IsClosed reports whether CloseBase has run
func (bc *BaseConnector) IsClosed() bool {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()
	return bc.closed
}

// Health reports the last periodic check. Without health checks a
// connector is healthy until closed.
func (bc *BaseConnector) Health(_ context.Context) error {
	if bc.IsClosed() {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if bc.healthChecker == nil {
		return nil
	}

	status := bc.healthChecker.GetStatus()
	if status.Status == "unhealthy" {
		return errors.Wrap(status.Error, errors.ErrorTypeConnection, "health check failed")
	}
	return nil
}

// Metrics returns identity and health metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"name":    bc.name,
		"type":    bc.connectorType,
		"version": bc.version,
		"uptime":  time.Since(bc.startTime).Seconds(),
	}
	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		m["health_status"] = status.Status
		m["health_check_count"] = bc.healthChecker.CheckCount()
		m["health_failure_count"] = bc.healthChecker.FailureCount()
	}
	return m
}

// CloseBase stops background work. It is safe to call more than once.
func (bc *BaseConnector) CloseBase() {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return
	}
	bc.closed = true
	bc.logger.Info("closing connector")

	if bc.cancel != nil {
		bc.cancel()
	}
	if bc.healthChecker != nil {
		bc.healthChecker.Stop()
	}
}
