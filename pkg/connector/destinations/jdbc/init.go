package jdbc

import (
	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("jdbc", func(cfg *config.Config) (core.Destination, error) {
		return NewDestination(cfg.Sink.Name, cfg.Sink)
	})
}
