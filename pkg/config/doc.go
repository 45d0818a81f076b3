// Package config loads and validates the JDBC sink configuration.
//
// # Usage
//
//	cfg, err := config.Load("sink.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variables
//
// Values of the form ${VAR_NAME} are substituted before parsing:
//
//	sink:
//	  connection_url: ${DATABASE_URL}
//
// Any key can also be overridden directly, using the JDBC_SINK prefix and
// underscores in place of dots:
//
//	JDBC_SINK_SINK_TABLE=orders_v2
//
// # Field Mappings
//
// The sink's fields setting selects struct fields and renames them:
//
//	fields: "*"                      # everything
//	fields: "id,total=amount"        # id and total, total written as amount
//	fields: "*,total=amount"         # everything, total written as amount
//
// # Error Policies
//
// error_policy is NOOP (drop a failed batch and continue) or THROW (fail
// the task). SWALLOW and PROPAGATE are accepted as synonyms.
package config
