package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
)

// fakeSession records marked offsets. The embedded interface covers the
// methods the handler never calls.
type fakeSession struct {
	sarama.ConsumerGroupSession

	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func newFakeSession(ctx context.Context) *fakeSession {
	return &fakeSession{ctx: ctx}
}

func (s *fakeSession) Claims() map[string][]int32 { return map[string][]int32{"orders": {0}} }
func (s *fakeSession) MemberID() string           { return "member-1" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) Context() context.Context   { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

func (s *fakeSession) Marked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim

	topic    string
	messages chan *sarama.ConsumerMessage
}

func newFakeClaim(topic string, values ...string) *fakeClaim {
	c := &fakeClaim{topic: topic, messages: make(chan *sarama.ConsumerMessage, len(values)+16)}
	for i, v := range values {
		c.messages <- &sarama.ConsumerMessage{Topic: topic, Partition: 0, Offset: int64(i), Value: []byte(v)}
	}
	return c
}

func (c *fakeClaim) Topic() string                            { return c.topic }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return int64(len(c.messages)) }

// fakeGroup runs one session over its claims, then reports itself closed.
type fakeGroup struct {
	sarama.ConsumerGroup

	claims   []*fakeClaim
	sessions int
	session  *fakeSession
	closed   bool
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	g.sessions++
	if g.sessions > 1 || g.closed {
		return sarama.ErrClosedConsumerGroup
	}
	g.session = newFakeSession(ctx)
	if err := handler.Setup(g.session); err != nil {
		return err
	}
	for _, claim := range g.claims {
		close(claim.messages)
		if err := handler.ConsumeClaim(g.session, claim); err != nil {
			break
		}
	}
	return handler.Cleanup(g.session)
}

func (g *fakeGroup) Close() error {
	g.closed = true
	return nil
}
