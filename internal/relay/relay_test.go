package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unavailable")

func touchEvent() dtcloud.DeviceEvent {
	return dtcloud.DeviceEvent{
		EventID:    "e1",
		TargetName: "projects/p1/devices/d1",
		EventType:  dtcloud.EventTypeTouch,
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		DeviceID:   "d1",
		ProjectID:  "p1",
		Data:       dtcloud.Touch{UpdateTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
}

type fakeConn struct {
	mutex   sync.Mutex
	msgs    []*nats.Msg
	flushes int
	drained bool
	err     error
}

func (c *fakeConn) PublishMsg(msg *nats.Msg) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.err != nil {
		return c.err
	}

	c.msgs = append(c.msgs, msg)

	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.flushes++

	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true

	return nil
}

type fakeWriter struct {
	mutex  sync.Mutex
	msgs   []kafka.Message
	closed bool
	err    error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.err != nil {
		return w.err
	}

	w.msgs = append(w.msgs, msgs...)

	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true

	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	publisher := NewNATSPublisher(conn, "")

	err := publisher.Publish(context.Background(), &Envelope{SchemaVersion: SchemaVersionV1, Event: touchEvent()})
	require.NoError(t, err)

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "dtcloud.events.p1.d1.touch", msg.Subject)
	assert.Equal(t, "e1", msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, 1, conn.flushes)

	var decoded Envelope

	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "e1", decoded.Event.EventID)
	assert.IsType(t, dtcloud.Touch{}, decoded.Event.Data)

	require.NoError(t, publisher.Close())
	assert.True(t, conn.drained)
}

func TestNATSPublisher_Subject(t *testing.T) {
	t.Parallel()

	publisher := NewNATSPublisher(&fakeConn{}, "acme.sensors")

	tests := []struct {
		name     string
		event    dtcloud.DeviceEvent
		expected string
	}{
		{
			name:     "plain",
			event:    dtcloud.DeviceEvent{ProjectID: "p1", DeviceID: "d1", EventType: "temperature"},
			expected: "acme.sensors.p1.d1.temperature",
		},
		{
			name:     "wildcards are replaced",
			event:    dtcloud.DeviceEvent{ProjectID: "p.1", DeviceID: "d*>", EventType: "touch"},
			expected: "acme.sensors.p_1.d__.touch",
		},
		{
			name:     "empty tokens",
			event:    dtcloud.DeviceEvent{EventType: "touch"},
			expected: "acme.sensors._._.touch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, publisher.Subject(&Envelope{Event: tt.event}))
		})
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := NewKafkaPublisher(writer)

	err := publisher.Publish(context.Background(), &Envelope{Event: touchEvent()})
	require.NoError(t, err)

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, []byte("d1"), msg.Key)
	assert.Equal(t, touchEvent().Timestamp, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("touch")})

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestPublishers_RejectNil(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewNATSPublisher(&fakeConn{}, "").Publish(context.Background(), nil), ErrNilEnvelope)
	require.ErrorIs(t, NewKafkaPublisher(&fakeWriter{}).Publish(context.Background(), nil), ErrNilEnvelope)
}

func TestNewKafkaWriter(t *testing.T) {
	t.Parallel()

	writer := NewKafkaWriter([]string{"localhost:9092"}, "")
	assert.Equal(t, DefaultTopic, writer.Topic)
	assert.Equal(t, "localhost:9092", writer.Addr.String())
}

func TestRelay_Forward(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	writer := &fakeWriter{err: errBroker}

	var reported []error

	relay := New(Options{
		Source:  "stream-1",
		OnError: func(err error) { reported = append(reported, err) },
	}, NewNATSPublisher(conn, ""), NewKafkaPublisher(writer))

	err := relay.Forward(context.Background(), touchEvent())
	require.ErrorIs(t, err, errBroker)
	assert.Len(t, reported, 1)
	assert.Len(t, conn.msgs, 1, "a failing publisher does not stop the others")

	writer.err = nil
	relay.Handler(context.Background())(touchEvent())

	published, failed := relay.Stats()
	assert.Equal(t, 1, published)
	assert.Equal(t, 1, failed)

	var envelope Envelope

	require.NoError(t, json.Unmarshal(conn.msgs[1].Data, &envelope))
	assert.Equal(t, "stream-1", envelope.Source)
	assert.Equal(t, SchemaVersionV1, envelope.SchemaVersion)

	require.NoError(t, relay.Close())
	assert.True(t, conn.drained)
	assert.True(t, writer.closed)
}
