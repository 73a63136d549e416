package kafka

import (
	"fmt"
	"log"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-settlement/config"
)

func NewConsumerGroup(cfg config.KafkaConfig) (sarama.ConsumerGroup, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = "settlement-service"
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	// Settlement messages must not be skipped when the group first
	// forms; start from the earliest retained offset.
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true

	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	log.Printf("Kafka consumer connected to brokers: %v, group: %s\n", cfg.Brokers, cfg.ConsumerGroupID)

	return consGroup, nil
}
