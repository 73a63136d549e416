package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type Producer interface {
	PublishPaymentRequest(ctx context.Context, event kafka.PaymentRequestEvent) error
	PublishDeadLetter(ctx context.Context, srcTopic string, payload []byte, reason string) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishPaymentRequest(ctx context.Context, event kafka.PaymentRequestEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishPaymentRequest: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: kafka.TopicPaymentRequest,
		Key:   sarama.StringEncoder(event.OrderID), // Partition by order_id for ordering
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

// PublishDeadLetter forwards a payload the consumer could not process
// to the source topic's dead-letter topic, carrying the processing
// error in a header.
func (p *implProducer) PublishDeadLetter(ctx context.Context, srcTopic string, payload []byte, reason string) error {
	msg := &sarama.ProducerMessage{
		Topic: srcTopic + kafka.DeadLetterSuffix,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderDeadLetterReason),
				Value: []byte(reason),
			},
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err := p.prod.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishDeadLetter: %v", err)
	}

	return err
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
