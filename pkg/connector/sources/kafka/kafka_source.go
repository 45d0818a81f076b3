// Package kafka provides the upstream log source. It consumes topics with a
// sarama consumer group, converts message values into records and delivers
// them to the sink in batches, committing offsets only for delivered
// batches.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/base"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

const version = "1.0.0"

// retryBackoff is the pause between consumer group sessions that ended
// with an error.
const retryBackoff = time.Second

// Source consumes records from Kafka topics.
type Source struct {
	*base.BaseConnector

	cfg       config.KafkaSourceConfig
	converter Converter

	client sarama.Client
	group  sarama.ConsumerGroup

	consumed counter

	mu          sync.Mutex
	initialized bool
	consuming   bool
}

// Option configures a Source.
type Option func(*Source)

// WithConsumerGroup makes Initialize use group instead of connecting to
// the configured brokers.
func WithConsumerGroup(group sarama.ConsumerGroup) Option {
	return func(s *Source) { s.group = group }
}

// WithConverter replaces the converter named by the configuration.
func WithConverter(c Converter) Option {
	return func(s *Source) { s.converter = c }
}

// NewSource creates a source. The configuration is validated here.
func NewSource(name string, cfg config.KafkaSourceConfig, opts ...Option) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source{
		BaseConnector: base.NewBaseConnector(name, core.ConnectorTypeSource, version),
		cfg:           cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.converter == nil {
		c, err := NewConverter(cfg)
		if err != nil {
			return nil, err
		}
		s.converter = c
	}
	return s, nil
}

// Initialize connects the consumer group.
func (s *Source) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return errors.New(errors.ErrorTypeValidation, "source already initialized")
	}

	if s.group == nil {
		sc, err := buildSaramaConfig(s.cfg)
		if err != nil {
			return err
		}
		s.client, err = sarama.NewClient(s.cfg.Brokers, sc)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Kafka client")
		}
		s.group, err = sarama.NewConsumerGroupFromClient(s.cfg.GroupID, s.client)
		if err != nil {
			_ = s.client.Close()
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create consumer group")
		}
	}
	s.initialized = true

	s.StartHealthChecks(ctx, &s.cfg.BaseConfig, s.checkClient)

	s.Logger().Info("kafka source initialized",
		zap.Strings("brokers", s.cfg.Brokers),
		zap.Strings("topics", s.cfg.Topics),
		zap.String("group_id", s.cfg.GroupID),
		zap.String("converter", s.cfg.Converter))
	return nil
}

func (s *Source) checkClient(_ context.Context) error {
	if s.client == nil {
		return nil
	}
	if s.client.Closed() {
		return errors.New(errors.ErrorTypeConnection, "kafka client is closed")
	}
	if len(s.client.Brokers()) == 0 {
		return errors.New(errors.ErrorTypeConnection, "no kafka brokers available")
	}
	return nil
}

// Consume joins the consumer group and delivers batches to handler until
// ctx is done or a batch fails. A failed batch is returned and its offsets
// are not committed.
func (s *Source) Consume(ctx context.Context, handler core.BatchHandler) error {
	s.mu.Lock()
	if !s.initialized || s.group == nil {
		s.mu.Unlock()
		return errors.New(errors.ErrorTypeValidation, "source not initialized")
	}
	if s.consuming {
		s.mu.Unlock()
		return errors.New(errors.ErrorTypeValidation, "source is already consuming")
	}
	s.consuming = true
	group := s.group
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.consuming = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := &groupHandler{
		handler:       handler,
		converter:     s.converter,
		batchSize:     s.cfg.Performance.BatchSize,
		flushInterval: s.cfg.Performance.FlushInterval,
		logger:        s.Logger(),
		cancel:        cancel,
		consumed:      &s.consumed,
	}
	if h.batchSize <= 0 {
		h.batchSize = 1
	}
	if h.flushInterval <= 0 {
		h.flushInterval = time.Second
	}

	for {
		err := group.Consume(ctx, s.cfg.Topics, h)
		if fatal := h.err(); fatal != nil {
			return fatal
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			s.Logger().Error("consumer group session failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
		}
	}
}

// Metrics adds consumption counters to the base metrics.
func (s *Source) Metrics() map[string]interface{} {
	m := s.BaseConnector.Metrics()
	m["topics"] = s.cfg.Topics
	m["group_id"] = s.cfg.GroupID
	m["messages_delivered"] = s.consumed.messages.Load()
	m["batches_delivered"] = s.consumed.batches.Load()
	return m
}

// Close leaves the consumer group and closes the client.
func (s *Source) Close(_ context.Context) error {
	s.CloseBase()

	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.group != nil {
		if err := s.group.Close(); err != nil {
			s.Logger().Error("failed to close consumer group", zap.Error(err))
			firstErr = err
		}
		s.group = nil
	}
	if s.client != nil && !s.client.Closed() {
		if err := s.client.Close(); err != nil {
			s.Logger().Error("failed to close Kafka client", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return errors.Wrap(firstErr, errors.ErrorTypeConnection, "failed to close kafka source")
	}
	return nil
}

// buildSaramaConfig builds the consumer configuration.
func buildSaramaConfig(cfg config.KafkaSourceConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.Name

	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka version")
		}
		sc.Version = v
	}

	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	switch cfg.InitialOffset {
	case "latest":
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.Consumer.Offsets.AutoCommit.Enable = true
	if cfg.SessionTimeout > 0 {
		sc.Consumer.Group.Session.Timeout = cfg.SessionTimeout
		sc.Consumer.Group.Heartbeat.Interval = cfg.SessionTimeout / 3
	}
	if cfg.Timeouts.Connection > 0 {
		sc.Net.DialTimeout = cfg.Timeouts.Connection
	}

	if cfg.EnableTLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.SASL.Enabled {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.SASL.Username
		sc.Net.SASL.Password = cfg.SASL.Password

		switch strings.ToUpper(cfg.SASL.Mechanism) {
		case "", "PLAIN":
			sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: sha256Generator}
			}
		case "SCRAM-SHA-512":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: sha512Generator}
			}
		default:
			return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unsupported SASL mechanism %q", cfg.SASL.Mechanism))
		}
	}

	if err := sc.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka configuration")
	}
	return sc, nil
}
