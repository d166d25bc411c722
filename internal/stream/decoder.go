package stream

import (
	"encoding/json"
	"errors"

	"github.com/fivetwenty-io/dtcloud/internal/sse"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// frameEnvelope is the JSON carried in the data of every stream frame.
type frameEnvelope struct {
	Result *struct {
		Event json.RawMessage `json:"event"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

// Decoder turns SSE frames into device events and stream errors.
type Decoder struct {
	onEvent func(dtcloud.DeviceEvent)
	onError func(error)
	// dropped counts frames that carried nothing deliverable.
	dropped int
}

// NewDecoder creates a decoder that reports to the given callbacks.
func NewDecoder(onEvent func(dtcloud.DeviceEvent), onError func(error)) *Decoder {
	return &Decoder{onEvent: onEvent, onError: onError}
}

// Dropped returns how many frames were ignored, such as keep-alives and
// events of unknown types.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Frame decodes one frame. Frames without data are keep-alives. Errors pushed
// by the server and undecodable frames are reported without ending the stream.
func (d *Decoder) Frame(frame sse.Frame) {
	if !frame.HasData() {
		d.dropped++

		return
	}

	var envelope frameEnvelope

	err := json.Unmarshal([]byte(frame.Data), &envelope)
	if err != nil {
		d.onError(malformed(err))

		return
	}

	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		d.onError(dtcloud.ClassifyFrameError(envelope.Error))

		return
	}

	if envelope.Result == nil || len(envelope.Result.Event) == 0 {
		d.dropped++

		return
	}

	var event dtcloud.DeviceEvent

	err = json.Unmarshal(envelope.Result.Event, &event)
	if err != nil {
		d.onError(malformed(err))

		return
	}

	if !event.Known() {
		d.dropped++

		return
	}

	d.onEvent(event)
}

func malformed(err error) error {
	return dtcloud.NewError(dtcloud.KindUnknownError, "undecodable stream frame", errors.Join(dtcloud.ErrMalformedFrame, err))
}
