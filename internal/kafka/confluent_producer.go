package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

const headerEvent = "event"

type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

var _ EventProducer = (*ConfluentProducer)(nil)

func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	// Ensure topic exists with desired partition count
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go cp.deliveryReportHandler()

	return cp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	l := log.Component("kafka")
	for e := range cp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				metrics.KafkaDeliveries.WithLabelValues(metrics.OutcomeFailed).Inc()
				l.Warn().Err(ev.TopicPartition.Error).Str("key", string(ev.Key)).Msg("kafka delivery failed")
				continue
			}
			metrics.KafkaDeliveries.WithLabelValues(metrics.OutcomeSent).Inc()
		case kafka.Error:
			l.Warn().Err(ev).Msg("kafka client error")
		}
	}
	close(cp.doneCh)
}

// ProduceMessage keys by conversation so both directions of a pair land on
// the same partition in order.
func (cp *ConfluentProducer) ProduceMessage(ctx context.Context, msg wire.Message) error {
	return cp.produce(ctx, domain.ConversationKey(msg.SenderID, msg.RecipientID), msg)
}

// ProduceProfileUpdate keys by user id.
func (cp *ConfluentProducer) ProduceProfileUpdate(ctx context.Context, upd wire.ProfileUpdate) error {
	return cp.produce(ctx, upd.UserID, upd)
}

func (cp *ConfluentProducer) produce(ctx context.Context, key string, p wire.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := wire.Encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", p.Event(), err)
	}

	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &cp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: headerEvent, Value: []byte(p.Event())}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce %s event: %w", p.Event(), err)
	}

	return nil
}

func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
