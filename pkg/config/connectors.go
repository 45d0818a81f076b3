package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// DriverConfig names the database driver a sink connects with.
type DriverConfig struct {
	// Class is the driver name in the database/sql registry
	Class string `yaml:"class" json:"class" mapstructure:"class"`
	// Artifact is an optional plugin file providing Class. When empty the
	// driver must already be registered, e.g. one of the built-in drivers.
	Artifact string `yaml:"artifact" json:"artifact" mapstructure:"artifact"`
}

// JDBCSinkConfig contains configuration for the JDBC destination.
type JDBCSinkConfig struct {
	BaseConfig `yaml:",inline" json:",inline" mapstructure:",squash"`

	// ConnectionURL is the DSN handed to sql.Open
	ConnectionURL string `yaml:"connection_url" json:"connection_url" mapstructure:"connection_url"`
	// Table is the target table for every record
	Table string `yaml:"table" json:"table" mapstructure:"table"`
	// Fields selects and aliases struct fields, e.g. "*", "a,b=alias_b"
	Fields string `yaml:"fields" json:"fields" mapstructure:"fields"`
	// ErrorPolicy is NOOP (swallow) or THROW (propagate)
	ErrorPolicy string `yaml:"error_policy" json:"error_policy" mapstructure:"error_policy"`
	// Batching groups records by shape into batched statements. When false
	// every record gets its own statement.
	Batching bool `yaml:"batching" json:"batching" mapstructure:"batching"`
	// Dialect overrides the placeholder style derived from the driver name
	Dialect string `yaml:"dialect" json:"dialect" mapstructure:"dialect"`

	Driver DriverConfig `yaml:"driver" json:"driver" mapstructure:"driver"`
}

// NewJDBCSinkConfig creates a JDBCSinkConfig with defaults.
func NewJDBCSinkConfig(name string) JDBCSinkConfig {
	return JDBCSinkConfig{
		BaseConfig:  NewBaseConfig(name, "jdbc"),
		ErrorPolicy: string(ErrorPolicyThrow),
		Batching:    true,
	}
}

// Validate checks the sink settings.
func (c *JDBCSinkConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if c.ConnectionURL == "" {
		return errors.New(errors.ErrorTypeConfig, "connection_url is required")
	}
	if strings.TrimSpace(c.Table) == "" {
		return errors.New(errors.ErrorTypeConfig, "table is required")
	}
	if c.Driver.Class == "" {
		return errors.New(errors.ErrorTypeConfig, "driver.class is required")
	}
	if _, err := ParseErrorPolicy(c.ErrorPolicy); err != nil {
		return err
	}
	if _, err := ParseFields(c.Fields); err != nil {
		return err
	}
	return nil
}

// SASLConfig configures SASL authentication.
type SASLConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Mechanism is PLAIN (default), SCRAM-SHA-256 or SCRAM-SHA-512
	Mechanism string `yaml:"mechanism" json:"mechanism" mapstructure:"mechanism"`
	Username  string `yaml:"username" json:"username" mapstructure:"username"`
	Password  string `yaml:"password" json:"password" mapstructure:"password"`
}

// KafkaSourceConfig contains configuration for the Kafka source.
type KafkaSourceConfig struct {
	BaseConfig `yaml:",inline" json:",inline" mapstructure:",squash"`

	Brokers []string `yaml:"brokers" json:"brokers" mapstructure:"brokers"`
	Topics  []string `yaml:"topics" json:"topics" mapstructure:"topics"`
	GroupID string   `yaml:"group_id" json:"group_id" mapstructure:"group_id"`
	// Version is the Kafka protocol version, e.g. "2.8.0"
	Version string `yaml:"version" json:"version" mapstructure:"version"`
	// InitialOffset is "earliest" or "latest"
	InitialOffset  string        `yaml:"initial_offset" json:"initial_offset" mapstructure:"initial_offset"`
	SessionTimeout time.Duration `yaml:"session_timeout" json:"session_timeout" mapstructure:"session_timeout"`

	// Converter decodes message values: "json" or "avro"
	Converter string `yaml:"converter" json:"converter" mapstructure:"converter"`
	// AvroSchema is the writer schema used by the avro converter
	AvroSchema string `yaml:"avro_schema" json:"avro_schema" mapstructure:"avro_schema"`
	// SchemaRegistryFraming strips the 5-byte Confluent wire header
	SchemaRegistryFraming bool `yaml:"schema_registry_framing" json:"schema_registry_framing" mapstructure:"schema_registry_framing"`

	EnableTLS bool       `yaml:"enable_tls" json:"enable_tls" mapstructure:"enable_tls"`
	SASL      SASLConfig `yaml:"sasl" json:"sasl" mapstructure:"sasl"`
}

// NewKafkaSourceConfig creates a KafkaSourceConfig with defaults.
func NewKafkaSourceConfig(name string) KafkaSourceConfig {
	return KafkaSourceConfig{
		BaseConfig:     NewBaseConfig(name, "kafka"),
		Brokers:        []string{"localhost:9092"},
		Version:        "2.8.0",
		InitialOffset:  "earliest",
		SessionTimeout: 10 * time.Second,
		Converter:      "json",
	}
}

// Validate checks the source settings.
func (c *KafkaSourceConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if len(c.Brokers) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one broker is required")
	}
	if len(c.Topics) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one topic is required")
	}
	if c.GroupID == "" {
		return errors.New(errors.ErrorTypeConfig, "group_id is required")
	}
	switch c.InitialOffset {
	case "", "earliest", "latest":
	default:
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("initial_offset must be earliest or latest, got %q", c.InitialOffset))
	}
	switch c.Converter {
	case "json":
	case "avro":
		if c.AvroSchema == "" {
			return errors.New(errors.ErrorTypeConfig, "avro_schema is required for the avro converter")
		}
	default:
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown converter %q", c.Converter))
	}
	return nil
}
