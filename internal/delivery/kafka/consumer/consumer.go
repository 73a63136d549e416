package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/monitoring"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/service"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

// Consumer drives the settlement handlers from the order.paid and
// payment.failed topics. Handler failures route the payload to the
// topic's dead-letter twin before the offset is committed; the message
// is never silently dropped and never retried forever in-line.
type Consumer struct {
	consGr sarama.ConsumerGroup
	stlSvc service.SettlementService
	prod   producer.Producer
	l      logger.Logger
	wg     sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	stlSvc service.SettlementService,
	prod producer.Producer,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr: consGr,
		stlSvc: stlSvc,
		prod:   prod,
		l:      l,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicOrderPaid:
		return c.HandleOrderPaid(ctx, msg)
	case kafka.TopicPaymentFailed:
		return c.HandlePaymentFailed(ctx, msg)
	default:
		c.l.Warn(ctx, "Unknown topic", "topic", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{kafka.TopicOrderPaid, kafka.TopicPaymentFailed}
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.Consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.Consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.Consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.processMessage(ss.Context(), message); err != nil {
				c.l.Error(ss.Context(), "delivery.kafka.consumer.Consumer.ConsumeClaim: processing failed",
					"topic", message.Topic,
					"offset", message.Offset,
					"error", err,
				)
				if !c.deadLetter(ss.Context(), message, err) {
					// Dead-lettering itself failed. Marking any later
					// message on this partition would implicitly commit
					// this offset too, so end the claim here; the group
					// re-fetches from the unmarked offset.
					return err
				}
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage, cause error) bool {
	if errors.Is(cause, context.Canceled) {
		return false
	}

	if err := c.prod.PublishDeadLetter(ctx, msg.Topic, msg.Value, cause.Error()); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.Consumer.deadLetter: %v", err)
		return false
	}

	monitoring.DeadLetteredMessages.WithLabelValues(msg.Topic).Inc()
	c.l.Warn(ctx, "Message routed to dead letter",
		"topic", msg.Topic,
		"offset", msg.Offset,
		"reason", cause.Error(),
	)

	return true
}
