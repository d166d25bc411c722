package dtcloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind identifies one member of the closed error taxonomy returned by the client.
type ErrorKind int

const (
	// KindUnknownError covers every outcome without a dedicated kind, including
	// undecodable response bodies and unexpected status codes.
	KindUnknownError ErrorKind = iota
	// KindServerUnavailable means no response was received (transport failure,
	// timeout or cancellation).
	KindServerUnavailable
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindInternalServerError
	KindServiceUnavailable
	KindGatewayTimeout
)

var errorKindNames = map[ErrorKind]string{
	KindUnknownError:        "unknown error",
	KindServerUnavailable:   "server unavailable",
	KindBadRequest:          "bad request",
	KindUnauthorized:        "unauthorized",
	KindForbidden:           "forbidden",
	KindNotFound:            "not found",
	KindConflict:            "conflict",
	KindTooManyRequests:     "too many requests",
	KindInternalServerError: "internal server error",
	KindServiceUnavailable:  "service unavailable",
	KindGatewayTimeout:      "gateway timeout",
}

// String returns a human readable name for the kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}

	return "unknown error"
}

// Error is the classified error returned by every client operation.
type Error struct {
	Kind ErrorKind
	// StatusCode is the HTTP status of the response, 0 when none was received.
	StatusCode int
	// Code is the numeric code reported in the error body, if any.
	Code int
	// Message is the human readable message from the error body, if any.
	Message string
	// Help is a documentation link from the error body, if any.
	Help string
	// RetryAfter is the server supplied delay for KindTooManyRequests.
	RetryAfter time.Duration
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var builder strings.Builder

	builder.WriteString(e.Kind.String())

	if e.StatusCode != 0 {
		_, _ = fmt.Fprintf(&builder, " (status %d)", e.StatusCode)
	}

	switch {
	case e.Message != "":
		builder.WriteString(": " + e.Message)
	case e.Err != nil:
		builder.WriteString(": " + e.Err.Error())
	}

	if e.Kind == KindTooManyRequests && e.RetryAfter > 0 {
		_, _ = fmt.Fprintf(&builder, " (retry after %s)", e.RetryAfter)
	}

	if e.Help != "" {
		builder.WriteString(" (see " + e.Help + ")")
	}

	return builder.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind, so that
// errors.Is(err, dtcloud.ErrNotFound) works on classified errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.StatusCode == 0 && t.Message == ""
}

// RetryAfterSeconds returns the Retry-After delay in whole seconds.
func (e *Error) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// Sentinels for errors.Is comparisons.
var (
	ErrServerUnavailable   = &Error{Kind: KindServerUnavailable}
	ErrBadRequest          = &Error{Kind: KindBadRequest}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrTooManyRequests     = &Error{Kind: KindTooManyRequests}
	ErrInternalServerError = &Error{Kind: KindInternalServerError}
	ErrServiceUnavailable  = &Error{Kind: KindServiceUnavailable}
	ErrGatewayTimeout      = &Error{Kind: KindGatewayTimeout}
	ErrUnknown             = &Error{Kind: KindUnknownError}
)

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired     = errors.New("config is required")
	ErrBaseURLRequired    = errors.New("base URL is required")
	ErrInvalidURL         = errors.New("invalid request URL")
	ErrNoCredentials      = errors.New("no valid credentials available")
	ErrUndecodableBody    = errors.New("response body could not be decoded")
	ErrPaginationLoop     = errors.New("pagination did not terminate")
	ErrIteratorExhausted  = errors.New("no more items")
	ErrMalformedFrame     = errors.New("malformed stream frame")
	ErrStreamEnded        = errors.New("event stream ended")
	ErrProjectIDRequired  = errors.New("project ID is required")
	ErrDeviceIDRequired   = errors.New("device ID is required")
	ErrUnsupportedEvent   = errors.New("event type cannot be emulated")
	ErrStaticTokenRefresh = errors.New("static token cannot be refreshed")
)

// NewError builds a classified error of the given kind around a cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindForStatus maps an HTTP status code to its error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	case http.StatusInternalServerError:
		return KindInternalServerError
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case http.StatusGatewayTimeout:
		return KindGatewayTimeout
	default:
		return KindUnknownError
	}
}

// Classify maps a transport outcome to exactly one classified error. It
// returns nil for a 2xx status without a transport failure.
func Classify(status int, header http.Header, body []byte, cause error) *Error {
	if status == 0 {
		return &Error{Kind: KindServerUnavailable, Err: cause}
	}

	if status >= 200 && status < 300 && cause == nil {
		return nil
	}

	classified := &Error{
		Kind:       KindForStatus(status),
		StatusCode: status,
		Err:        cause,
	}

	if classified.Kind == KindTooManyRequests && header != nil {
		if delay, ok := ParseRetryAfter(header.Get("Retry-After"), time.Now()); ok {
			classified.RetryAfter = delay
		}
	}

	applyErrorBody(classified, body)

	return classified
}

// restErrorBody is the error envelope of REST responses. The error member is
// usually a string but streams nest an object under the same key.
type restErrorBody struct {
	Error json.RawMessage `json:"error"`
	Code  int             `json:"code"`
	Help  string          `json:"help"`
}

type frameErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Help string `json:"help"`
	} `json:"details"`
}

func applyErrorBody(classified *Error, body []byte) {
	if len(body) == 0 {
		return
	}

	var envelope restErrorBody

	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return
	}

	classified.Code = envelope.Code
	classified.Help = envelope.Help

	if len(envelope.Error) == 0 {
		return
	}

	var message string

	err = json.Unmarshal(envelope.Error, &message)
	if err == nil {
		classified.Message = message

		return
	}

	var nested frameErrorBody

	err = json.Unmarshal(envelope.Error, &nested)
	if err == nil {
		mergeFrameError(classified, &nested)
	}
}

func mergeFrameError(classified *Error, body *frameErrorBody) {
	if body.Code != 0 {
		classified.Code = body.Code
	}

	if body.Message != "" {
		classified.Message = body.Message
	}

	for _, detail := range body.Details {
		if detail.Help != "" {
			classified.Help = detail.Help

			break
		}
	}
}

// ClassifyFrameError classifies the object found under "error" in a stream
// frame. The embedded code doubles as the HTTP status.
func ClassifyFrameError(raw []byte) *Error {
	var body frameErrorBody

	err := json.Unmarshal(raw, &body)
	if err != nil {
		return &Error{Kind: KindUnknownError, Message: "malformed stream error frame", Err: ErrMalformedFrame}
	}

	classified := &Error{Kind: KindForStatus(body.Code), StatusCode: body.Code}
	mergeFrameError(classified, &body)

	return classified
}

// ParseRetryAfter parses a Retry-After header given either as delay seconds or
// as an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	seconds, err := strconv.Atoi(value)
	if err == nil {
		if seconds < 0 {
			return 0, false
		}

		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	delay := at.Sub(now)
	if delay < 0 {
		delay = 0
	}

	return delay, true
}

// KindOf returns the kind of a classified error, or KindUnknownError.
func KindOf(err error) ErrorKind {
	classified := &Error{}
	if errors.As(err, &classified) {
		return classified.Kind
	}

	return KindUnknownError
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTooManyRequests checks if the error is a rate limit error.
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// IsServerUnavailable checks if no response was received.
func IsServerUnavailable(err error) bool {
	return errors.Is(err, ErrServerUnavailable)
}
