package kafka

import (
	"fmt"
	"log"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-settlement/config"
)

// NewProducer builds a synchronous producer. Payment requests and
// dead-letter forwards both need a confirmed write before the caller
// moves on, so async produce buys nothing here.
func NewProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = "settlement-service"
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.ProducerRequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.ProducerRetryMax
	saramaCfg.Producer.Return.Successes = true

	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Printf("Kafka producer connected to brokers: %v\n", cfg.Brokers)

	return prod, nil
}
