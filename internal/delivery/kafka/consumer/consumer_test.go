package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafka "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/service"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type stubSettlementService struct {
	paid    []service.OrderPaidInput
	failed  []service.PaymentFailedInput
	expired []string
	err     error
}

func (s *stubSettlementService) HandleOrderPaid(_ context.Context, in service.OrderPaidInput) error {
	if s.err != nil {
		return s.err
	}
	s.paid = append(s.paid, in)
	return nil
}

func (s *stubSettlementService) HandlePaymentFailed(_ context.Context, in service.PaymentFailedInput) error {
	if s.err != nil {
		return s.err
	}
	s.failed = append(s.failed, in)
	return nil
}

func (s *stubSettlementService) ExpireOrder(_ context.Context, orderID string) error {
	s.expired = append(s.expired, orderID)
	return nil
}

type stubProducer struct {
	deadLetters []struct {
		topic  string
		reason string
	}
	err error
}

func (p *stubProducer) PublishPaymentRequest(context.Context, kafka.PaymentRequestEvent) error {
	return nil
}

func (p *stubProducer) PublishDeadLetter(_ context.Context, srcTopic string, _ []byte, reason string) error {
	if p.err != nil {
		return p.err
	}
	p.deadLetters = append(p.deadLetters, struct {
		topic  string
		reason string
	}{srcTopic, reason})
	return nil
}

func (p *stubProducer) Close() error { return nil }

func newTestConsumer(stl *stubSettlementService, prod *stubProducer) *Consumer {
	return NewConsumer(nil, stl, prod, logger.InitializeTestZapLogger())
}

func message(t *testing.T, topic string, payload any) *sarama.ConsumerMessage {
	t.Helper()
	val, err := json.Marshal(payload)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: topic, Value: val}
}

func TestHandleOrderPaid_DispatchesToService(t *testing.T) {
	stl := &stubSettlementService{}
	c := newTestConsumer(stl, &stubProducer{})

	ts := time.Now().Truncate(time.Second).UTC()
	msg := message(t, kafka.TopicOrderPaid, kafka.OrderPaidEvent{
		OrderID:   "ord-1",
		Timestamp: ts,
	})

	require.NoError(t, c.HandleOrderPaid(context.Background(), msg))
	require.Len(t, stl.paid, 1)
	assert.Equal(t, "ord-1", stl.paid[0].OrderID)
	assert.Equal(t, ts, stl.paid[0].Timestamp)
}

func TestHandlePaymentFailed_DispatchesToService(t *testing.T) {
	stl := &stubSettlementService{}
	c := newTestConsumer(stl, &stubProducer{})

	msg := message(t, kafka.TopicPaymentFailed, kafka.PaymentFailedEvent{
		OrderID: "ord-1",
		Reason:  "card declined",
	})

	require.NoError(t, c.HandlePaymentFailed(context.Background(), msg))
	require.Len(t, stl.failed, 1)
	assert.Equal(t, "card declined", stl.failed[0].Reason)
}

func TestHandlers_RejectMalformedPayload(t *testing.T) {
	stl := &stubSettlementService{}
	c := newTestConsumer(stl, &stubProducer{})

	bad := &sarama.ConsumerMessage{Topic: kafka.TopicOrderPaid, Value: []byte("{not json")}

	assert.Error(t, c.HandleOrderPaid(context.Background(), bad))
	bad.Topic = kafka.TopicPaymentFailed
	assert.Error(t, c.HandlePaymentFailed(context.Background(), bad))
	assert.Empty(t, stl.paid)
	assert.Empty(t, stl.failed)
}

func TestProcessMessage_RoutesByTopic(t *testing.T) {
	stl := &stubSettlementService{}
	c := newTestConsumer(stl, &stubProducer{})
	ctx := context.Background()

	require.NoError(t, c.processMessage(ctx, message(t, kafka.TopicOrderPaid, kafka.OrderPaidEvent{OrderID: "a"})))
	require.NoError(t, c.processMessage(ctx, message(t, kafka.TopicPaymentFailed, kafka.PaymentFailedEvent{OrderID: "b"})))

	assert.Len(t, stl.paid, 1)
	assert.Len(t, stl.failed, 1)

	// Unknown topics are ignored, not dead-lettered.
	require.NoError(t, c.processMessage(ctx, &sarama.ConsumerMessage{Topic: "mystery", Value: []byte("{}")}))
}

type stubSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (s *stubSession) Claims() map[string][]int32 { return nil }
func (s *stubSession) MemberID() string { return "member-1" }
func (s *stubSession) GenerationID() int32 { return 1 }
func (s *stubSession) MarkOffset(string, int32, int64, string) {}
func (s *stubSession) Commit() {}
func (s *stubSession) ResetOffset(string, int32, int64, string) {}
func (s *stubSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg)
}
func (s *stubSession) Context() context.Context { return s.ctx }

type stubClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *stubClaim) Topic() string { return kafka.TopicOrderPaid }
func (c *stubClaim) Partition() int32 { return 0 }
func (c *stubClaim) InitialOffset() int64 { return 0 }
func (c *stubClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *stubClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimWith(msgs ...*sarama.ConsumerMessage) *stubClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &stubClaim{messages: ch}
}

func TestConsumeClaim_MarksProcessedMessages(t *testing.T) {
	stl := &stubSettlementService{}
	c := newTestConsumer(stl, &stubProducer{})

	ss := &stubSession{ctx: context.Background()}
	msg := message(t, kafka.TopicOrderPaid, kafka.OrderPaidEvent{OrderID: "ord-1"})

	require.NoError(t, c.ConsumeClaim(ss, claimWith(msg)))
	require.Len(t, stl.paid, 1)
	assert.Equal(t, []*sarama.ConsumerMessage{msg}, ss.marked)
}

func TestConsumeClaim_MarksDeadLetteredMessages(t *testing.T) {
	stl := &stubSettlementService{err: errors.New("order ghost not found")}
	prod := &stubProducer{}
	c := newTestConsumer(stl, prod)

	ss := &stubSession{ctx: context.Background()}
	msg := message(t, kafka.TopicOrderPaid, kafka.OrderPaidEvent{OrderID: "ghost"})

	require.NoError(t, c.ConsumeClaim(ss, claimWith(msg)))
	require.Len(t, prod.deadLetters, 1)
	assert.Len(t, ss.marked, 1)
}

func TestConsumeClaim_DeadLetterFailureEndsClaimUnmarked(t *testing.T) {
	stl := &stubSettlementService{err: errors.New("order ghost not found")}
	prod := &stubProducer{err: errors.New("broker down")}
	c := newTestConsumer(stl, prod)

	ss := &stubSession{ctx: context.Background()}
	msg := message(t, kafka.TopicOrderPaid, kafka.OrderPaidEvent{OrderID: "ghost"})
	later := message(t, kafka.TopicOrderPaid, kafka.OrderPaidEvent{OrderID: "ord-2"})

	// The claim must end at the poison message: marking the later one
	// would implicitly commit the unhandled offset too.
	err := c.ConsumeClaim(ss, claimWith(msg, later))
	require.Error(t, err)
	assert.Empty(t, ss.marked)
	assert.Empty(t, stl.paid)
}

func TestDeadLetter_PublishesWithReason(t *testing.T) {
	prod := &stubProducer{}
	c := newTestConsumer(&stubSettlementService{}, prod)

	msg := &sarama.ConsumerMessage{Topic: kafka.TopicOrderPaid, Value: []byte("{}")}

	ok := c.deadLetter(context.Background(), msg, errors.New("order ghost not found"))
	assert.True(t, ok)
	require.Len(t, prod.deadLetters, 1)
	assert.Equal(t, kafka.TopicOrderPaid, prod.deadLetters[0].topic)
	assert.Equal(t, "order ghost not found", prod.deadLetters[0].reason)
}

func TestDeadLetter_PublishFailureLeavesOffsetUncommitted(t *testing.T) {
	prod := &stubProducer{err: errors.New("broker down")}
	c := newTestConsumer(&stubSettlementService{}, prod)

	msg := &sarama.ConsumerMessage{Topic: kafka.TopicOrderPaid, Value: []byte("{}")}

	assert.False(t, c.deadLetter(context.Background(), msg, errors.New("handler failed")))
}

func TestDeadLetter_SkipsContextCancellation(t *testing.T) {
	prod := &stubProducer{}
	c := newTestConsumer(&stubSettlementService{}, prod)

	msg := &sarama.ConsumerMessage{Topic: kafka.TopicOrderPaid, Value: []byte("{}")}

	// A handler aborted by shutdown is not a poison message.
	assert.False(t, c.deadLetter(context.Background(), msg, context.Canceled))
	assert.Empty(t, prod.deadLetters)
}
