package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/service"
)

func (c *Consumer) HandleOrderPaid(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Info(ctx, "HandleOrderPaid consumed")

	var e kafka.OrderPaidEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleOrderPaid: %v", err)
		return err
	}

	if err := c.stlSvc.HandleOrderPaid(ctx, service.OrderPaidInput{
		OrderID:   e.OrderID,
		Timestamp: e.Timestamp,
	}); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleOrderPaid: %v", err)
		return err
	}

	return nil
}

func (c *Consumer) HandlePaymentFailed(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Info(ctx, "HandlePaymentFailed consumed")

	var e kafka.PaymentFailedEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandlePaymentFailed: %v", err)
		return err
	}

	if err := c.stlSvc.HandlePaymentFailed(ctx, service.PaymentFailedInput{
		OrderID:   e.OrderID,
		Reason:    e.Reason,
		Timestamp: e.Timestamp,
	}); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandlePaymentFailed: %v", err)
		return err
	}

	return nil
}
