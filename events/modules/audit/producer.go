package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ebuddy/user-admin-backend/model"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafka.Writer the producer needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes audit entries to Kafka
type Producer struct {
	Writer messageWriter
}

// NewProducer initializes a new Kafka writer for audit events
func NewProducer(brokers []string, topic string, transport kafka.RoundTripper) *Producer {
	return &Producer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Transport:    transport,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			// One message per request; do not linger for a batch.
			BatchSize:    1,
			BatchTimeout: 5 * time.Millisecond,
			MaxAttempts:  2,
			WriteTimeout: 2 * time.Second,
		},
	}
}

// PublishAudit sends the entry to the topic, keyed by the audited user so that
// events for one user stay ordered within a partition.
func (p *Producer) PublishAudit(ctx context.Context, entry model.AuditEntry) error {
	msg, err := buildMessage(entry, uuid.New().String(), time.Now().UTC())
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, msg)
}

// Close cleans up the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}

func buildMessage(entry model.AuditEntry, eventID string, at time.Time) (kafka.Message, error) {
	event := RecordedEvent{
		EventType:     EventTypeRecorded,
		EventID:       eventID,
		EventTime:     at,
		SchemaVersion: "v1",
		Entry:         entry,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(entry.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeRecorded)},
		},
	}, nil
}
