// Package config provides the configuration for the JDBC sink.
//
// A sink process is described by one Config: a Kafka source section, a JDBC
// sink section and the process-wide logging, metrics and tracing settings.
// Both connector sections embed BaseConfig, which holds the settings shared
// by every connector:
//   - Performance: batch size, flush interval
//   - Timeouts: connection and request timeouts
//   - Reliability: health checking
//
// Example usage:
//
//	cfg := config.NewConfig("orders-sink")
//	cfg.Sink.ConnectionURL = "postgres://localhost/shop"
//	cfg.Sink.Table = "orders"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// BaseConfig holds the settings shared by every connector. Connectors embed
// it with the yaml inline and mapstructure squash tags.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Type specifies the connector type (e.g., "kafka", "jdbc")
	Type string `yaml:"type" json:"type" mapstructure:"type"`

	// Performance settings control throughput
	Performance PerformanceConfig `yaml:"performance" json:"performance" mapstructure:"performance"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`

	// Reliability settings for health checking
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability" mapstructure:"reliability"`
}

// PerformanceConfig contains the batching settings.
type PerformanceConfig struct {
	// BatchSize caps the number of records handed to the sink at once
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`
	// FlushInterval flushes a partial batch after this long
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" mapstructure:"flush_interval"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
	// Request timeout for one batch write
	Request time.Duration `yaml:"request" json:"request" mapstructure:"request"`
}

// ReliabilityConfig contains health check settings.
type ReliabilityConfig struct {
	// HealthCheck enables periodic health checks
	HealthCheck bool `yaml:"health_check" json:"health_check" mapstructure:"health_check"`
	// HealthInterval is the time between health checks
	HealthInterval time.Duration `yaml:"health_interval" json:"health_interval" mapstructure:"health_interval"`
}

// LoggingConfig configures the global zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address of the /metrics server; empty disables it
	Listen string `yaml:"listen" json:"listen" mapstructure:"listen"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
}

// Config is the complete configuration of one sink process.
type Config struct {
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Tasks is the number of sink tasks run concurrently
	Tasks int `yaml:"tasks" json:"tasks" mapstructure:"tasks"`

	Source KafkaSourceConfig `yaml:"source" json:"source" mapstructure:"source"`
	Sink   JDBCSinkConfig    `yaml:"sink" json:"sink" mapstructure:"sink"`

	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// NewBaseConfig creates a BaseConfig with defaults.
func NewBaseConfig(name, connectorType string) BaseConfig {
	return BaseConfig{
		Name: name,
		Type: connectorType,
		Performance: PerformanceConfig{
			BatchSize:     500,
			FlushInterval: 5 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Connection: 10 * time.Second,
			Request:    30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			HealthCheck:    true,
			HealthInterval: 30 * time.Second,
		},
	}
}

// NewConfig creates a Config with defaults for every section.
func NewConfig(name string) *Config {
	return &Config{
		Name:   name,
		Tasks:  1,
		Source: NewKafkaSourceConfig(name + "-source"),
		Sink:   NewJDBCSinkConfig(name + "-sink"),
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "jdbc-sink",
		},
	}
}

// Validate validates the shared connector settings.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size must be positive")
	}
	if bc.Timeouts.Connection < 0 || bc.Timeouts.Request < 0 {
		return errors.New(errors.ErrorTypeConfig, "timeouts cannot be negative")
	}
	return nil
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if c.Tasks <= 0 {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("tasks must be positive, got %d", c.Tasks))
	}
	if err := c.Source.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid source")
	}
	if err := c.Sink.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid sink")
	}
	return nil
}
