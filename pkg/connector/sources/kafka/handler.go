package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/metrics"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// groupHandler implements sarama.ConsumerGroupHandler. Each claim collects
// messages into a batch and hands it to the batch handler once batchSize
// messages are waiting or flushInterval has passed. Offsets are marked only
// after the handler accepted the batch.
type groupHandler struct {
	handler       core.BatchHandler
	converter     Converter
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	// cancel stops the Consume loop after a fatal error
	cancel context.CancelFunc

	mu    sync.Mutex
	fatal error

	consumed *counter
}

type counter struct {
	messages atomic.Int64
	batches  atomic.Int64
}

func (c *counter) add(messages int) {
	c.messages.Add(int64(messages))
	c.batches.Add(1)
}

func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("partitions assigned",
		zap.Any("claims", session.Claims()),
		zap.String("member_id", session.MemberID()),
		zap.Int32("generation", session.GenerationID()))
	return nil
}

func (h *groupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("partitions revoked", zap.String("member_id", session.MemberID()))
	return nil
}

// ConsumeClaim batches the messages of one partition. Messages still
// buffered when the session ends are not marked and will be redelivered.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	batch := make([]*sarama.ConsumerMessage, 0, h.batchSize)
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := h.deliver(session, claim.Topic(), batch)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			batch = append(batch, msg)
			if len(batch) >= h.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// deliver converts a batch, runs the handler and marks the last offset.
// Any failure is fatal for the source.
func (h *groupHandler) deliver(session sarama.ConsumerGroupSession, topic string, batch []*sarama.ConsumerMessage) error {
	records := make([]*models.Record, 0, len(batch))
	for _, msg := range batch {
		value, err := h.converter.Convert(msg.Topic, msg.Value)
		if err != nil {
			metrics.RecordsConsumed.WithLabelValues(topic, metrics.StatusFailed).Add(float64(len(batch)))
			return h.fail(errors.Wrap(err, errors.ErrorTypeData, "failed to convert message").
				WithDetail("partition", msg.Partition).
				WithDetail("offset", msg.Offset))
		}
		records = append(records, &models.Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     value,
			Timestamp: msg.Timestamp,
		})
	}

	ctx := context.WithValue(session.Context(), logger.TopicKey, topic)
	if err := h.handler(ctx, records); err != nil {
		metrics.RecordsConsumed.WithLabelValues(topic, metrics.StatusFailed).Add(float64(len(batch)))
		return h.fail(err)
	}

	last := batch[len(batch)-1]
	session.MarkMessage(last, "")
	h.consumed.add(len(batch))
	metrics.RecordsConsumed.WithLabelValues(topic, metrics.StatusSuccess).Add(float64(len(batch)))

	h.logger.Debug("batch delivered",
		zap.String("topic", topic),
		zap.Int32("partition", last.Partition),
		zap.Int64("offset", last.Offset),
		zap.Int("records", len(records)))
	return nil
}

// fail records the first fatal error and stops consumption.
func (h *groupHandler) fail(err error) error {
	h.mu.Lock()
	if h.fatal == nil {
		h.fatal = err
	}
	h.mu.Unlock()
	h.logger.Error("stopping consumption after fatal error", zap.Error(err))
	h.cancel()
	return err
}

func (h *groupHandler) err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatal
}
