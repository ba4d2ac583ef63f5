package kafka

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

// Header names carried on every message record. Consumers route on them
// without decoding the value.
const (
	HeaderMessageID   = "message_id"
	HeaderSenderID    = "sender_id"
	HeaderMessageType = "message_type"
)

// MessagePublisher forwards persisted messages to downstream consumers
// (search indexing, notification fan-out). Publishing is best effort and
// happens after the message is durable.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg *domain.Message) error
	Close() error
}

// MessageRecord is the value written to the message topic.
type MessageRecord struct {
	ID        string             `json:"id"`
	ChatID    string             `json:"chatId"`
	SenderID  string             `json:"senderId"`
	Content   string             `json:"content"`
	Type      domain.MessageType `json:"type"`
	CreatedAt int64              `json:"createdAt"` // unix ms
}

// NewMessageRecord flattens a message for the wire.
func NewMessageRecord(msg *domain.Message) MessageRecord {
	return MessageRecord{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      msg.Type,
		CreatedAt: msg.CreatedAt.UnixMilli(),
	}
}

// RecordHeaders returns the routing headers for msg.
func RecordHeaders(msg *domain.Message) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderMessageID, Value: []byte(msg.ID)},
		{Key: HeaderSenderID, Value: []byte(msg.SenderID)},
		{Key: HeaderMessageType, Value: []byte(msg.Type)},
	}
}

// NoopPublisher drops every message. Used when kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishMessage(context.Context, *domain.Message) error { return nil }

func (NoopPublisher) Close() error { return nil }
