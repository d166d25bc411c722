package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the first token of every relayed subject.
const DefaultSubjectPrefix = "dtcloud.events"

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes envelopes on <prefix>.<project>.<device>.<eventType>.
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

// DialNATS connects to a NATS server and returns a publisher.
func DialNATS(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{nats.Name("dtcloud-relay")}, opts...)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return NewNATSPublisher(conn, prefix), nil
}

// NewNATSPublisher wraps an existing connection. An empty prefix uses
// DefaultSubjectPrefix.
func NewNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an envelope is published on.
func (p *NATSPublisher) Subject(envelope *Envelope) string {
	event := envelope.Event

	return p.prefix + "." + subjectToken(event.ProjectID) + "." + subjectToken(event.DeviceID) + "." + subjectToken(event.EventType)
}

// Publish sends the envelope and waits for the server to acknowledge the flush.
// The event ID is set as message ID so JetStream can drop duplicates.
func (p *NATSPublisher) Publish(ctx context.Context, envelope *Envelope) error {
	if envelope == nil {
		return ErrNilEnvelope
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	msg := nats.NewMsg(p.Subject(envelope))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, envelope.Event.EventID)
	msg.Header.Set("Dtcloud-Event-Type", envelope.Event.EventType)

	err = p.conn.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("publishing to NATS: %w", err)
	}

	err = p.conn.FlushWithContext(ctx)
	if err != nil {
		return fmt.Errorf("flushing NATS connection: %w", err)
	}

	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.Drain()
	if err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}

	return nil
}
