package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives relayed events unless another topic is configured.
const DefaultTopic = "dtcloud-device-events"

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes envelopes keyed by device ID, so events of one device
// stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter creates a writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher wraps a writer.
func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes one message.
func (p *KafkaPublisher) Publish(ctx context.Context, envelope *Envelope) error {
	if envelope == nil {
		return ErrNilEnvelope
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	event := envelope.Event

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DeviceID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "project_id", Value: []byte(event.ProjectID)},
		},
	})
	if err != nil {
		return fmt.Errorf("writing to Kafka: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	err := p.writer.Close()
	if err != nil {
		return fmt.Errorf("closing Kafka writer: %w", err)
	}

	return nil
}
