package kafka

import (
	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("kafka", func(cfg *config.Config) (core.Source, error) {
		return NewSource(cfg.Source.Name, cfg.Source)
	})
}
