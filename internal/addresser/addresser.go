// Package addresser computes content identifiers.
//
// An Addresser is the only way the rest of the module turns content into an
// identifier. Implementations may be slow (a subprocess or a network round
// trip) and must be safe for concurrent use. The core depends on nothing but
// the Address signature, so schemes are interchangeable as long as a store is
// only ever populated by one of them (see Scheme).
package addresser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Addresser maps a payload to a content identifier.
type Addresser interface {
	// Address returns the identifier for payload. Failures are reported
	// as *Error so callers can classify them.
	Address(ctx context.Context, payload []byte) (string, error)

	// Scheme names the addressing scheme. Two addressers with the same
	// scheme must produce the same identifier for the same payload.
	Scheme() string
}

// Func adapts a function to the Addresser interface.
type Func struct {
	Name string
	Fn   func(ctx context.Context, payload []byte) (string, error)
}

func (f Func) Address(ctx context.Context, payload []byte) (string, error) {
	return f.Fn(ctx, payload)
}

func (f Func) Scheme() string { return f.Name }

// ErrorKind classifies addressing failures.
type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindProcessFailure ErrorKind = "process_failure"
	KindInvalidInput   ErrorKind = "invalid_input"
)

// Error is returned by every Addresser in this package.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("addressing %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("addressing %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an addressing error. Errors that are not *Error
// are reported as process failures; context deadline errors as timeouts.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindProcessFailure
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// classify turns a raw failure into an *Error, mapping context deadlines to
// KindTimeout.
func classify(ctx context.Context, msg string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, msg, err)
	}
	return newError(KindProcessFailure, msg, err)
}

// timeoutAddresser bounds every call with a deadline.
type timeoutAddresser struct {
	inner   Addresser
	timeout time.Duration
}

// WithTimeout bounds each Address call. A call that exceeds d fails with
// KindTimeout instead of hanging. A non-positive d returns a as is.
func WithTimeout(a Addresser, d time.Duration) Addresser {
	if d <= 0 {
		return a
	}
	return &timeoutAddresser{inner: a, timeout: d}
}

func (t *timeoutAddresser) Scheme() string { return t.inner.Scheme() }

func (t *timeoutAddresser) Address(ctx context.Context, payload []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		id  string
		err error
	}
	// The inner call may ignore ctx; run it aside so the deadline still wins.
	done := make(chan result, 1)
	go func() {
		id, err := t.inner.Address(ctx, payload)
		done <- result{id, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", classify(ctx, "address", r.err)
		}
		return r.id, nil
	case <-ctx.Done():
		return "", classify(ctx, fmt.Sprintf("no identifier after %s", t.timeout), ctx.Err())
	}
}

// retryAddresser retries failed calls a bounded number of times.
type retryAddresser struct {
	inner    Addresser
	attempts int
	backoff  time.Duration
}

// WithRetry retries an item up to attempts times in total, sleeping backoff
// (doubled after each failure) between attempts. Invalid input is never
// retried. attempts <= 1 returns a as is.
func WithRetry(a Addresser, attempts int, backoff time.Duration) Addresser {
	if attempts <= 1 {
		return a
	}
	return &retryAddresser{inner: a, attempts: attempts, backoff: backoff}
}

func (r *retryAddresser) Scheme() string { return r.inner.Scheme() }

func (r *retryAddresser) Address(ctx context.Context, payload []byte) (string, error) {
	var lastErr error
	wait := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		id, err := r.inner.Address(ctx, payload)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if KindOf(err) == KindInvalidInput || attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", classify(ctx, "retry aborted", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	return "", lastErr
}
