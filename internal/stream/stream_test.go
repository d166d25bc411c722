package stream_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dthttp "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/internal/stream"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventFrame(eventType, payload string) string {
	return fmt.Sprintf(
		"data: {\"result\":{\"event\":{\"eventId\":\"e-%s\",\"targetName\":\"projects/p1/devices/d1\",\"eventType\":%q,\"data\":{%q:%s},\"timestamp\":\"2026-03-01T10:00:00Z\"}}}\n\n",
		eventType, eventType, eventType, payload,
	)
}

const (
	touchPayload = `{"updateTime":"2026-03-01T10:00:00Z"}`
	tempPayload  = `{"value":21.5,"updateTime":"2026-03-01T10:00:00Z"}`
)

// sseServer writes the given chunks, flushing after each, then either ends the
// response or holds it open until the client goes away.
func sseServer(t *testing.T, hold bool, chunks ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/projects/p1/devices:stream", request.URL.Path)
		assert.Equal(t, "text/event-stream", request.Header.Get("Accept"))

		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		flusher, ok := writer.(http.Flusher)
		if !assert.True(t, ok) {
			return
		}

		for _, chunk := range chunks {
			_, _ = writer.Write([]byte(chunk))
			flusher.Flush()
		}

		if hold {
			<-request.Context().Done()
		}
	}))
}

func subscribe(t *testing.T, server *httptest.Server, opts stream.Options, handlers *stream.Handlers) *stream.Stream {
	t.Helper()

	opts.Path = "/projects/p1/devices:stream"

	sub, err := stream.Subscribe(context.Background(), dthttp.NewClient(server.URL, nil), opts, handlers)
	require.NoError(t, err)

	return sub
}

func waitDone(t *testing.T, sub *stream.Stream) {
	t.Helper()

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not shut down")
	}
}

func TestStream_TypedHandlerFiresOncePerEvent(t *testing.T) {
	t.Parallel()

	server := sseServer(t, false,
		": ping\n\n",
		eventFrame(dtcloud.EventTypeTemperature, tempPayload),
		eventFrame("touch", touchPayload),
		eventFrame("co2", `{"ppm":400}`),
	)
	defer server.Close()

	var (
		temperatures []float64
		errs         []error
		states       []stream.State
	)

	handlers := &stream.Handlers{
		OnError:       func(err error) { errs = append(errs, err) },
		OnStateChange: func(state stream.State) { states = append(states, state) },
	}
	handlers.OnTemperature(func(deviceID string, data dtcloud.Temperature) {
		assert.Equal(t, "d1", deviceID)

		temperatures = append(temperatures, data.Value)
	})

	sub := subscribe(t, server, stream.Options{}, handlers)
	waitDone(t, sub)

	assert.Equal(t, []float64{21.5}, temperatures)
	require.Len(t, errs, 1)
	assert.True(t, dtcloud.IsServerUnavailable(errs[0]))
	assert.ErrorIs(t, errs[0], dtcloud.ErrStreamEnded)
	assert.Equal(t, []stream.State{stream.StateOpen, stream.StateClosed}, states)
	assert.Equal(t, stream.StateClosed, sub.State())
}

func TestStream_NoCallbacksAfterClose(t *testing.T) {
	t.Parallel()

	chunks := make([]string, 0, 50)
	for range 50 {
		chunks = append(chunks, eventFrame(dtcloud.EventTypeTemperature, tempPayload))
	}

	server := sseServer(t, true, chunks...)
	defer server.Close()

	var (
		sub      *stream.Stream
		ready    = make(chan struct{})
		calls    atomic.Int32
		errCalls atomic.Int32
		states   atomic.Int32
	)

	handlers := &stream.Handlers{
		OnEvent: func(dtcloud.DeviceEvent) {
			calls.Add(1)
			<-ready
			sub.Close()
			sub.Close()
		},
		OnError:       func(error) { errCalls.Add(1) },
		OnStateChange: func(stream.State) { states.Add(1) },
	}

	sub = subscribe(t, server, stream.Options{}, handlers)
	close(ready)

	waitDone(t, sub)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(0), errCalls.Load())
	assert.Equal(t, int32(1), states.Load(), "only the transition to open")
	assert.Equal(t, stream.StateClosed, sub.State())
}

func TestStream_CloseFromOutside(t *testing.T) {
	t.Parallel()

	server := sseServer(t, true, eventFrame(dtcloud.EventTypeTemperature, tempPayload))
	defer server.Close()

	received := make(chan struct{}, 1)

	var errCalls atomic.Int32

	handlers := &stream.Handlers{
		OnEvent: func(dtcloud.DeviceEvent) { received <- struct{}{} },
		OnError: func(error) { errCalls.Add(1) },
	}

	sub := subscribe(t, server, stream.Options{}, handlers)

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	sub.Close()
	sub.Wait()

	assert.Equal(t, int32(0), errCalls.Load())
	assert.Equal(t, stream.StateClosed, sub.State())
}

// endlessBody yields the same frame on every read until its context ends.
type endlessBody struct {
	ctx   context.Context //nolint:containedctx // bound to one response
	frame []byte
}

func (b *endlessBody) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}

	return copy(p, b.frame), nil
}

type endlessTransport struct {
	frame []byte
}

func (tr endlessTransport) Open(ctx context.Context, _ *dthttp.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(&endlessBody{ctx: ctx, frame: tr.frame}),
	}, nil
}

func TestStream_CloseFromOutsideWhileEventsFlow(t *testing.T) {
	t.Parallel()

	transport := endlessTransport{frame: []byte(eventFrame(dtcloud.EventTypeTemperature, tempPayload))}

	for range 500 {
		var (
			closeReturned atomic.Bool
			late          atomic.Int32
			first         = make(chan struct{})
			once          sync.Once
		)

		check := func() {
			if closeReturned.Load() {
				late.Add(1)
			}
		}

		handlers := &stream.Handlers{
			OnEvent: func(dtcloud.DeviceEvent) {
				check()
				once.Do(func() { close(first) })
			},
			OnError:       func(error) { check() },
			OnStateChange: func(stream.State) { check() },
		}

		sub, err := stream.Subscribe(context.Background(), transport, stream.Options{Path: "/projects/p1/devices:stream"}, handlers)
		require.NoError(t, err)

		select {
		case <-first:
		case <-time.After(5 * time.Second):
			t.Fatal("no event received")
		}

		sub.Close()
		closeReturned.Store(true)

		waitDone(t, sub)
		require.Zero(t, late.Load(), "handler started after Close returned")
	}
}

func TestStream_ErrorFramesKeepStreamOpen(t *testing.T) {
	t.Parallel()

	server := sseServer(t, false,
		"data: {\"error\":{\"code\":403,\"message\":\"no access\",\"details\":[{\"help\":\"https://docs\"}]}}\n\n",
		"data: {not json\n\n",
		eventFrame(dtcloud.EventTypeTemperature, `{"value":"hot"}`),
		eventFrame("touch", touchPayload),
	)
	defer server.Close()

	var (
		errs    []error
		touches int
	)

	handlers := &stream.Handlers{OnError: func(err error) { errs = append(errs, err) }}
	handlers.OnTouch(func(string, dtcloud.Touch) { touches++ })

	sub := subscribe(t, server, stream.Options{}, handlers)
	waitDone(t, sub)

	require.Len(t, errs, 4)

	forbidden := &dtcloud.Error{}
	require.ErrorAs(t, errs[0], &forbidden)
	assert.Equal(t, dtcloud.KindForbidden, forbidden.Kind)
	assert.Equal(t, "no access", forbidden.Message)
	assert.Equal(t, "https://docs", forbidden.Help)

	assert.Equal(t, dtcloud.KindUnknownError, dtcloud.KindOf(errs[1]))
	assert.ErrorIs(t, errs[1], dtcloud.ErrMalformedFrame)
	assert.Equal(t, dtcloud.KindUnknownError, dtcloud.KindOf(errs[2]))

	assert.Equal(t, 1, touches, "stream stayed open after errors")
	assert.True(t, dtcloud.IsServerUnavailable(errs[3]))
}

func TestStream_OpenFailureIsTerminal(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts.Add(1)
		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte(`{"error":"project not found","code":404}`))
	}))
	defer server.Close()

	var errs []error

	handlers := &stream.Handlers{OnError: func(err error) { errs = append(errs, err) }}

	sub := subscribe(t, server, stream.Options{Reconnect: true}, handlers)
	waitDone(t, sub)

	require.Len(t, errs, 1)
	assert.True(t, dtcloud.IsNotFound(errs[0]))
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, stream.StateClosed, sub.State())
}

func TestStream_Reconnect(t *testing.T) {
	t.Parallel()

	var (
		connections atomic.Int32
		lastIDs     sync.Map
	)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		n := connections.Add(1)
		lastIDs.Store(n, request.Header.Get("Last-Event-ID"))

		writer.WriteHeader(http.StatusOK)

		flusher, _ := writer.(http.Flusher)
		_, _ = writer.Write([]byte("id: " + fmt.Sprint(n) + "\n" + eventFrame(dtcloud.EventTypeTemperature, tempPayload)))
		flusher.Flush()

		if n > 1 {
			<-request.Context().Done()
		}
	}))
	defer server.Close()

	var (
		sub    *stream.Stream
		ready  = make(chan struct{})
		events atomic.Int32
		states []stream.State
		mu     sync.Mutex
	)

	handlers := &stream.Handlers{
		OnEvent: func(dtcloud.DeviceEvent) {
			if events.Add(1) == 2 {
				<-ready
				sub.Close()
			}
		},
		OnStateChange: func(state stream.State) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		},
	}

	sub = subscribe(t, server, stream.Options{Reconnect: true}, handlers)
	close(ready)
	waitDone(t, sub)

	assert.Equal(t, int32(2), events.Load())
	assert.Equal(t, int32(2), connections.Load())

	second, _ := lastIDs.Load(int32(2))
	assert.Equal(t, "1", second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []stream.State{stream.StateOpen, stream.StateConnecting, stream.StateOpen}, states)
}

func TestSubscribe_RequiresTransport(t *testing.T) {
	t.Parallel()

	_, err := stream.Subscribe(context.Background(), nil, stream.Options{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, dtcloud.ErrConfigRequired)
}
