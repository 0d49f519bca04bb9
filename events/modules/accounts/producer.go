package accounts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Cognio-so/agt-tester/model"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher emits account events. Implementations must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, eventType string, u *model.User) error
}

// messageWriter is the part of *kafka.Writer the producer needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles sending account events to Kafka
type Producer struct {
	Writer messageWriter
}

// NewProducer wraps a Kafka writer
func NewProducer(w *kafka.Writer) *Producer {
	return &Producer{Writer: w}
}

// NewEvent builds the event for u
func NewEvent(eventType string, u *model.User) AccountEvent {
	return AccountEvent{
		EventType:     eventType,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		UserID:        u.Key,
		Email:         u.Email,
		Role:          string(u.Role),
	}
}

// Publish sends the event keyed by user id so one user's events stay ordered.
func (p *Producer) Publish(ctx context.Context, eventType string, u *model.User) error {
	payload, err := json.Marshal(NewEvent(eventType, u))
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(u.Key),
		Value: payload,
	})
}

// Close cleans up the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Noop drops every event. It is used when no brokers are configured.
type Noop struct{}

// Publish does nothing
func (Noop) Publish(context.Context, string, *model.User) error { return nil }
