package http

import (
	"context"
	"time"
)

// backoffTable is indexed by the retry count, the last entry repeating.
var backoffTable = []time.Duration{ //nolint:gochecknoglobals // fixed schedule
	0,
	300 * time.Millisecond,
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
	7 * time.Second,
	11 * time.Second,
	15 * time.Second,
}

// RetryScheme produces the delays between retries of one call or one stream.
// It is not safe for concurrent use.
type RetryScheme struct {
	retries    int
	initial    time.Duration
	maxRetries *int
}

// NewRetryScheme creates a scheme that allows at most maxRetries retries.
func NewRetryScheme(initial time.Duration, maxRetries int) *RetryScheme {
	return &RetryScheme{initial: initial, maxRetries: &maxRetries}
}

// NewUnboundedRetryScheme creates a scheme that never runs out of retries.
func NewUnboundedRetryScheme(initial time.Duration) *RetryScheme {
	return &RetryScheme{initial: initial}
}

// NextBackoff returns the delay before the next retry, or false once the
// retry limit is exhausted. Every call counts as one retry.
func (s *RetryScheme) NextBackoff() (time.Duration, bool) {
	retry := s.retries
	s.retries++

	if s.maxRetries != nil && retry >= *s.maxRetries {
		return 0, false
	}

	index := min(retry, len(backoffTable)-1)

	return s.initial + backoffTable[index], true
}

// Reset starts the schedule over, typically after a successful connection.
func (s *RetryScheme) Reset() {
	s.retries = 0
}

// Retries returns how many backoffs have been handed out since the last reset.
func (s *RetryScheme) Retries() int {
	return s.retries
}

// Sleep waits for delay or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type retrySchemeKey struct{}

func withRetryScheme(ctx context.Context, scheme *RetryScheme) context.Context {
	return context.WithValue(ctx, retrySchemeKey{}, scheme)
}

func retrySchemeFrom(ctx context.Context) *RetryScheme {
	scheme, _ := ctx.Value(retrySchemeKey{}).(*RetryScheme)

	return scheme
}
