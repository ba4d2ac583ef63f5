package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// ConfluentProducer publishes persisted chat messages to one topic.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
	doneCh   chan struct{}
}

// TopicOptions describes the message topic and where it lives.
type TopicOptions struct {
	Brokers           string
	Topic             string
	Partitions        int
	ReplicationFactor int
	Retention         time.Duration
}

func NewConfluentProducer(opts TopicOptions) (*ConfluentProducer, error) {
	logger := log.Component("kafka").With().Str("topic", opts.Topic).Logger()

	if err := ensureMessageTopic(opts); err != nil {
		logger.Warn().Err(err).Msg("could not ensure message topic, publishing anyway")
	}

	p, err := kafka.NewProducer(producerConfig(opts.Brokers))
	if err != nil {
		return nil, fmt.Errorf("failed to create message producer for %s: %w", opts.Topic, err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    opts.Topic,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}
	go cp.deliveryReportHandler()
	return cp, nil
}

// producerConfig enables idempotence so broker retries cannot reorder or
// duplicate a chat's messages within its partition.
func producerConfig(brokers string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"client.id":          "chat-service",
		"enable.idempotence": true,
		"acks":               "all",
		"linger.ms":          5,
		"compression.type":   "lz4",
	}
}

func messageTopicSpec(opts TopicOptions) kafka.TopicSpecification {
	replication := opts.ReplicationFactor
	if replication < 1 {
		replication = 1
	}
	spec := kafka.TopicSpecification{
		Topic:             opts.Topic,
		NumPartitions:     opts.Partitions,
		ReplicationFactor: replication,
		Config:            map[string]string{"cleanup.policy": "delete"},
	}
	if opts.Retention > 0 {
		spec.Config["retention.ms"] = strconv.FormatInt(opts.Retention.Milliseconds(), 10)
	}
	return spec
}

func ensureMessageTopic(opts TopicOptions) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": opts.Brokers})
	if err != nil {
		return fmt.Errorf("admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{messageTopicSpec(opts)})
	if err != nil {
		return fmt.Errorf("create topic %s: %w", opts.Topic, err)
	}
	for _, result := range results {
		switch result.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("create topic %s: %v", result.Topic, result.Error)
		}
	}
	return nil
}

// deliveryReportHandler logs messages the broker could not take. The
// message is already persisted, so a failed delivery is never retried here.
func (cp *ConfluentProducer) deliveryReportHandler() {
	for e := range cp.producer.Events() {
		ev, ok := e.(*kafka.Message)
		if !ok || ev.TopicPartition.Error == nil {
			continue
		}
		evt := cp.logger.Error().
			Err(ev.TopicPartition.Error).
			Str(log.FieldChatID, string(ev.Key))
		if id, ok := ev.Opaque.(string); ok {
			evt = evt.Str(log.FieldMessageID, id)
		}
		evt.Msg("chat message delivery failed")
	}
	close(cp.doneCh)
}

// PublishMessage enqueues msg keyed by chat id so a chat's messages stay in
// one partition, in send order.
func (cp *ConfluentProducer) PublishMessage(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	km, err := cp.record(msg)
	if err != nil {
		return err
	}
	if err := cp.producer.Produce(km, nil); err != nil {
		return fmt.Errorf("failed to publish message %s of chat %s: %w", msg.ID, msg.ChatID, err)
	}
	return nil
}

func (cp *ConfluentProducer) record(msg *domain.Message) (*kafka.Message, error) {
	if msg.ChatID == "" {
		return nil, fmt.Errorf("message %s has no chat id to partition by", msg.ID)
	}
	value, err := json.Marshal(NewMessageRecord(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &cp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:       []byte(msg.ChatID),
		Value:     value,
		Headers:   RecordHeaders(msg),
		Timestamp: msg.CreatedAt,
		Opaque:    msg.ID,
	}, nil
}

func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
