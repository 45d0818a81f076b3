// Package jdbcsink streams records from Kafka topics into a relational table
// through database/sql.
//
// # Architecture
//
// A sink process runs one or more sink tasks. Each task pairs a Kafka source
// with a JDBC destination:
//
//	kafka source ──► transforms ──► jdbc destination
//	 (sarama group,   (topic filter,   (field extractor, insert
//	  json/avro)       tombstones)      builder, binders, writer)
//
// The destination groups every batch by shape, the pair of record schema and
// the set of extracted columns, and executes one prepared INSERT per shape.
// A failed batch is handled by the configured error policy: THROW
// (alias propagate) returns the error and the offsets stay uncommitted,
// NOOP (alias swallow) logs it and moves on.
//
// Drivers come from the built-in set (mysql, pgx, snowflake, sqlite) or are
// loaded at start-up from a Go plugin named by sink.driver.artifact.
//
// # Quick Start
//
//	cfg := config.NewConfig("orders")
//	cfg.Source.Topics = []string{"orders"}
//	cfg.Source.GroupID = "jdbc-sink"
//	cfg.Sink.ConnectionURL = "postgres://localhost/shop"
//	cfg.Sink.Driver.Class = "pgx"
//	cfg.Sink.Table = "orders"
//	cfg.Sink.Fields = "*,customer=customer_name"
//
//	tasks, err := pipeline.BuildTasks(cfg, registry.GetRegistry())
//	if err != nil {
//	    return err
//	}
//	return pipeline.NewRunner(tasks...).Run(ctx)
//
// or from the command line:
//
//	jdbc-sink run --config sink.yaml
//
// # Key Packages
//
//	pkg/jdbc/loader     - Driver loading from plugin artifacts
//	pkg/jdbc/extract    - Field selection and aliasing
//	pkg/jdbc/query      - INSERT statement generation per dialect
//	pkg/jdbc/binders    - Value binding for primitive and logical types
//	pkg/jdbc/writer     - Batched statement builder and error policy
//	pkg/connector       - Source and destination connectors and registry
//	pkg/config          - YAML configuration with environment overrides
//	internal/pipeline   - Sink tasks and the task runner
package jdbcsink
