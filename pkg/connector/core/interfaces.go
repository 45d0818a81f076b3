// Package core defines the interfaces connectors implement.
package core

import (
	"context"
	"time"

	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// HealthStatus represents the health status of a connector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}

// Connector is the part shared by sources and destinations.
type Connector interface {
	Name() string
	Type() ConnectorType
	Version() string

	// Initialize connects to the external system. It must be called once
	// before any other operation.
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// BatchHandler receives one batch of records. A Source waits for the
// handler to return before it delivers the next batch, and commits the
// batch's position only when the handler returns nil.
type BatchHandler func(ctx context.Context, records []*models.Record) error

// Source reads records from the upstream log.
type Source interface {
	Connector

	// Consume delivers batches to handler until ctx is done or handler
	// returns an error, which Consume then returns.
	Consume(ctx context.Context, handler BatchHandler) error
}

// Destination writes records to a database.
type Destination interface {
	Connector

	// Write persists one batch. A nil return means the batch may be
	// committed upstream, including when a failure was deliberately
	// swallowed.
	Write(ctx context.Context, records []*models.Record) error
}
