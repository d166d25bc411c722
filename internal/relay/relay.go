// Package relay forwards streamed device events to message brokers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// SchemaVersionV1 is the first version of the relayed payload schema.
const SchemaVersionV1 = 1

// ErrNilEnvelope indicates a nil envelope was provided to a publisher.
var ErrNilEnvelope = errors.New("nil event envelope")

// Envelope is the broker-neutral payload of a relayed event.
type Envelope struct {
	SchemaVersion int                 `json:"schema_version"`
	RelayedAt     time.Time           `json:"relayed_at"`
	Source        string              `json:"source,omitempty"`
	Event         dtcloud.DeviceEvent `json:"event"`
}

// Publisher publishes envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, envelope *Envelope) error
	Close() error
}

// Options configures a Relay.
type Options struct {
	// Source is recorded in every envelope, e.g. the stream ID.
	Source string
	// PublishTimeout bounds each publish. Zero means no timeout.
	PublishTimeout time.Duration
	// OnError receives publish failures. Delivery to other publishers continues.
	OnError func(error)
	Logger  dtcloud.Logger
}

// Relay fans events out to several publishers.
type Relay struct {
	publishers []Publisher
	opts       Options
	now        func() time.Time

	mutex     sync.Mutex
	published int
	failed    int
}

// New creates a relay over publishers.
func New(opts Options, publishers ...Publisher) *Relay {
	return &Relay{
		publishers: publishers,
		opts:       opts,
		now:        time.Now,
	}
}

// Handler returns an event handler suitable for dtcloud.EventHandlers.OnEvent.
func (r *Relay) Handler(ctx context.Context) dtcloud.EventHandler {
	return func(event dtcloud.DeviceEvent) {
		_ = r.Forward(ctx, event)
	}
}

// Forward publishes one event to every publisher and joins their errors.
func (r *Relay) Forward(ctx context.Context, event dtcloud.DeviceEvent) error {
	envelope := &Envelope{
		SchemaVersion: SchemaVersionV1,
		RelayedAt:     r.now().UTC(),
		Source:        r.opts.Source,
		Event:         event,
	}

	var errs []error

	for _, publisher := range r.publishers {
		err := r.publish(ctx, publisher, envelope)
		if err != nil {
			errs = append(errs, err)

			if r.opts.OnError != nil {
				r.opts.OnError(err)
			}
		}
	}

	r.mutex.Lock()
	if len(errs) > 0 {
		r.failed++
	} else {
		r.published++
	}
	r.mutex.Unlock()

	if len(errs) > 0 {
		r.log("Relaying event failed", map[string]interface{}{"event_id": event.EventID, "errors": len(errs)})
	}

	return errors.Join(errs...)
}

func (r *Relay) publish(ctx context.Context, publisher Publisher, envelope *Envelope) error {
	if r.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.opts.PublishTimeout)
		defer cancel()
	}

	return publisher.Publish(ctx, envelope)
}

// Stats returns how many events were relayed and how many failed.
func (r *Relay) Stats() (published, failed int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.published, r.failed
}

// Close closes every publisher.
func (r *Relay) Close() error {
	var errs []error

	for _, publisher := range r.publishers {
		err := publisher.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (r *Relay) log(msg string, fields map[string]interface{}) {
	if r.opts.Logger != nil {
		r.opts.Logger.Warn(msg, fields)
	}
}

// subjectToken makes s usable as a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, s)
}
