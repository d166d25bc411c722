// Package stream consumes the device event stream of a project.
package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"sync/atomic"
	"time"

	dthttp "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/internal/sse"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/google/uuid"
)

// State aliases the lifecycle state shared with the public API.
type State = dtcloud.StreamState

// Lifecycle states.
const (
	StateConnecting = dtcloud.StreamConnecting
	StateOpen       = dtcloud.StreamOpen
	StateClosed     = dtcloud.StreamClosed
)

// Handlers aliases the public dispatch table.
type Handlers = dtcloud.EventHandlers

const readBufferSize = 32 * 1024

// Transport opens long-lived responses. *dthttp.Client implements it.
type Transport interface {
	Open(ctx context.Context, req *dthttp.Request) (*http.Response, error)
}

// Options configures a stream.
type Options struct {
	// Path is the stream endpoint, e.g. "/projects/p1/devices:stream".
	Path  string
	Query url.Values

	// Reconnect re-dials after the connection is lost.
	Reconnect bool
	// ReconnectInitial is added to every reconnect delay.
	ReconnectInitial time.Duration

	Logger dtcloud.Logger
}

// Stream is a running subscription. All handler calls happen on one
// goroutine, in the order frames arrive.
type Stream struct {
	id        string
	transport Transport
	opts      Options
	handlers  *Handlers
	logger    dtcloud.Logger

	closed atomic.Bool
	// delivering is raised by the pump before it checks closed, inHandler
	// while a handler runs.
	delivering atomic.Bool
	inHandler  atomic.Bool

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

var _ dtcloud.Subscription = (*Stream)(nil)

// Subscribe starts a stream in StateConnecting and returns immediately.
// Connection failures are reported through handlers.OnError.
func Subscribe(ctx context.Context, transport Transport, opts Options, handlers *Handlers) (*Stream, error) {
	if transport == nil {
		return nil, dtcloud.NewError(dtcloud.KindUnknownError, "stream transport is required", dtcloud.ErrConfigRequired)
	}

	if handlers == nil {
		handlers = &Handlers{}
	}

	ctx, cancel := context.WithCancel(ctx)

	stream := &Stream{
		id:        uuid.NewString(),
		transport: transport,
		opts:      opts,
		handlers:  handlers,
		logger:    opts.Logger,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	stream.state.Store(int32(StateConnecting))

	go stream.run(ctx)

	return stream, nil
}

// ID identifies the stream in logs.
func (s *Stream) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Close stops the stream. It does not wait for shutdown or for a running
// handler, so it may be called from a handler. No handler starts after Close
// returns.
func (s *Stream) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.state.Store(int32(StateClosed))
	s.cancel()

	// A delivery that passed the closed check before it was raised is about
	// to call its handler.
	for s.delivering.Load() && !s.inHandler.Load() {
		runtime.Gosched()
	}

	s.log("debug", "Stream closed", nil)
}

// Done is closed once the pump goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the pump goroutine has exited.
func (s *Stream) Wait() {
	<-s.done
}

func (s *Stream) isClosed() bool {
	return s.closed.Load()
}

// deliver runs fn unless the stream was closed. delivering is raised before
// closed is read and Close raises closed before it reads delivering, so
// either the pump sees the close or Close sees the delivery.
func (s *Stream) deliver(fn func()) bool {
	s.delivering.Store(true)
	defer s.delivering.Store(false)

	if s.closed.Load() {
		return false
	}

	s.inHandler.Store(true)
	defer s.inHandler.Store(false)

	fn()

	return true
}

func (s *Stream) emitEvent(event dtcloud.DeviceEvent) {
	for _, handler := range s.handlers.Matching(event) {
		if !s.deliver(func() { handler(event) }) {
			return
		}
	}
}

func (s *Stream) emitError(err error) {
	s.deliver(func() { s.handlers.DispatchError(err) })
}

func (s *Stream) transition(state State) {
	if s.isClosed() {
		return
	}

	if State(s.state.Swap(int32(state))) == state {
		return
	}

	s.deliver(func() { s.handlers.DispatchState(state) })
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	scheme := dthttp.NewUnboundedRetryScheme(s.opts.ReconnectInitial)
	lastEventID := ""

	for {
		s.log("debug", "Stream connecting", map[string]interface{}{"path": s.opts.Path})

		opened, err := s.pump(ctx, &lastEventID)
		if s.isClosed() || ctx.Err() != nil {
			s.finish()

			return
		}

		if opened {
			scheme.Reset()
		}

		s.log("warn", "Stream connection lost", map[string]interface{}{"error": err.Error()})
		s.emitError(err)

		if !s.opts.Reconnect || !retryable(err) {
			s.finish()

			return
		}

		s.transition(StateConnecting)

		delay, _ := scheme.NextBackoff()

		err = dthttp.Sleep(ctx, delay)
		if err != nil {
			s.finish()

			return
		}
	}
}

// finish moves a stream that ended on its own to StateClosed.
func (s *Stream) finish() {
	s.transition(StateClosed)
	s.closed.Store(true)
	s.state.Store(int32(StateClosed))
}

// pump runs one connection until it ends. It reports whether the
// connection was opened and why it ended.
func (s *Stream) pump(ctx context.Context, lastEventID *string) (bool, error) {
	headers := map[string]string{"Accept": "text/event-stream"}
	if *lastEventID != "" {
		headers["Last-Event-ID"] = *lastEventID
	}

	resp, err := s.transport.Open(ctx, &dthttp.Request{
		Method:  http.MethodGet,
		Path:    s.opts.Path,
		Query:   s.opts.Query,
		Headers: headers,
	})
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	s.transition(StateOpen)
	s.log("info", "Stream open", nil)

	parser := sse.NewParser()
	decoder := NewDecoder(s.emitEvent, s.emitError)
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, frame := range parser.Feed(buf[:n]) {
				if s.isClosed() {
					return true, nil
				}

				decoder.Frame(frame)
			}
		}

		if readErr == nil {
			continue
		}

		for _, frame := range parser.Flush() {
			if s.isClosed() {
				return true, nil
			}

			decoder.Frame(frame)
		}

		*lastEventID = parser.LastEventID()

		if errors.Is(readErr, io.EOF) {
			return true, dtcloud.NewError(dtcloud.KindServerUnavailable, "event stream ended", dtcloud.ErrStreamEnded)
		}

		return true, dtcloud.Classify(0, nil, nil, readErr)
	}
}

// retryable reports whether reconnecting can help.
func retryable(err error) bool {
	switch dtcloud.KindOf(err) {
	case dtcloud.KindServerUnavailable,
		dtcloud.KindTooManyRequests,
		dtcloud.KindInternalServerError,
		dtcloud.KindServiceUnavailable,
		dtcloud.KindGatewayTimeout:
		return true
	default:
		return false
	}
}

func (s *Stream) log(level, msg string, fields map[string]interface{}) {
	if s.logger == nil {
		return
	}

	if fields == nil {
		fields = map[string]interface{}{}
	}

	fields["stream_id"] = s.id

	switch level {
	case "debug":
		s.logger.Debug(msg, fields)
	case "info":
		s.logger.Info(msg, fields)
	default:
		s.logger.Warn(msg, fields)
	}
}
