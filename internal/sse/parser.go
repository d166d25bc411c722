// Package sse parses Server-Sent Events from arbitrarily chunked input.
//
// Unlike a line scanner over an io.Reader, Parser is fed whatever bytes the
// transport produced and keeps partial lines between calls, so the frames it
// returns do not depend on how the stream was split.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"strconv"
	"strings"
	"time"
)

// Frame is one dispatched SSE record.
type Frame struct {
	// Event is the "event" field, empty for the default message type.
	Event string
	// Data is every "data" line of the record joined with "\n".
	Data string
	// ID is the last event ID seen on the stream, which persists across frames.
	ID string
	// Comments holds the text of ":" lines without the colon.
	Comments []string
	// Unknown holds fields this parser does not interpret, last value wins.
	Unknown map[string]string
}

// HasData reports whether the frame carries a non-empty data buffer.
func (f *Frame) HasData() bool {
	return f.Data != ""
}

// Parser accumulates fields until a blank line dispatches them. It is not
// safe for concurrent use.
type Parser struct {
	line      []byte
	pendingCR bool

	event     string
	data      []string
	comments  []string
	unknown   map[string]string
	lastID    string
	retry     time.Duration
	hasFields bool
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Retry returns the reconnection delay announced by the server, or zero.
func (p *Parser) Retry() time.Duration {
	return p.retry
}

// LastEventID returns the most recent id field.
func (p *Parser) LastEventID() string {
	return p.lastID
}

// Feed consumes a chunk and returns the frames completed by it, in order.
func (p *Parser) Feed(chunk []byte) []Frame {
	var frames []Frame

	for _, b := range chunk {
		if p.pendingCR {
			p.pendingCR = false

			if b == '\n' {
				continue
			}
		}

		switch b {
		case '\r':
			p.pendingCR = true

			frames = p.endLine(frames)
		case '\n':
			frames = p.endLine(frames)
		default:
			p.line = append(p.line, b)
		}
	}

	return frames
}

// Flush treats the end of input as the end of the current line and record,
// returning the final frame if anything was pending.
func (p *Parser) Flush() []Frame {
	var frames []Frame

	p.pendingCR = false

	if len(p.line) > 0 {
		frames = p.endLine(frames)
	}

	if p.hasFields {
		frames = append(frames, p.dispatch())
	}

	return frames
}

func (p *Parser) endLine(frames []Frame) []Frame {
	line := string(p.line)
	p.line = p.line[:0]

	if line == "" {
		if p.hasFields {
			frames = append(frames, p.dispatch())
		}

		return frames
	}

	p.hasFields = true

	if comment, ok := strings.CutPrefix(line, ":"); ok {
		p.comments = append(p.comments, strings.TrimPrefix(comment, " "))

		return frames
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		p.event = value
	case "data":
		p.data = append(p.data, value)
	case "id":
		// An id containing NUL is ignored.
		if !strings.ContainsRune(value, 0) {
			p.lastID = value
		}
	case "retry":
		if millis, err := strconv.ParseUint(value, 10, 32); err == nil {
			p.retry = time.Duration(millis) * time.Millisecond
		}
	default:
		if p.unknown == nil {
			p.unknown = make(map[string]string)
		}

		p.unknown[field] = value
	}

	return frames
}

func (p *Parser) dispatch() Frame {
	frame := Frame{
		Event:    p.event,
		Data:     strings.Join(p.data, "\n"),
		ID:       p.lastID,
		Comments: p.comments,
		Unknown:  p.unknown,
	}

	p.event = ""
	p.data = nil
	p.comments = nil
	p.unknown = nil
	p.hasFields = false

	return frame
}
