package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roach88/tokencid/internal/addresser"
)

// SchemeSHA1 is the scheme reported by SHA1Addresser.
const SchemeSHA1 = "test-sha1"

// SHA1Addresser returns hex(sha1(payload)) as the identifier. It is
// deterministic, needs no external process, and is safe for concurrent use.
type SHA1Addresser struct {
	calls atomic.Int64
}

func (a *SHA1Addresser) Scheme() string { return SchemeSHA1 }

func (a *SHA1Addresser) Address(_ context.Context, payload []byte) (string, error) {
	a.calls.Add(1)
	return SHA1Hex(payload), nil
}

// Calls returns how many times Address has been invoked.
func (a *SHA1Addresser) Calls() int64 {
	return a.calls.Load()
}

// SHA1Hex is the identifier SHA1Addresser produces for payload.
func SHA1Hex(payload []byte) string {
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// FailingAddresser wraps Inner and fails every payload for which Fail
// returns true. Each payload is passed to Fail once per call.
type FailingAddresser struct {
	Inner addresser.Addresser
	Fail  func(payload []byte) bool

	mu     sync.Mutex
	failed [][]byte
}

// ErrInjected is the cause of every failure FailingAddresser produces.
var ErrInjected = errors.New("injected addressing failure")

func (a *FailingAddresser) Scheme() string { return a.Inner.Scheme() }

func (a *FailingAddresser) Address(ctx context.Context, payload []byte) (string, error) {
	if a.Fail != nil && a.Fail(payload) {
		a.mu.Lock()
		a.failed = append(a.failed, append([]byte(nil), payload...))
		a.mu.Unlock()
		return "", &addresser.Error{Kind: addresser.KindProcessFailure, Message: "injected", Err: ErrInjected}
	}
	return a.Inner.Address(ctx, payload)
}

// Failed returns the payloads that were failed, in call order.
func (a *FailingAddresser) Failed() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]byte(nil), a.failed...)
}

// BlockingAddresser blocks every call until ctx is done or Release is
// closed, then delegates to Inner.
type BlockingAddresser struct {
	Inner   addresser.Addresser
	Release chan struct{}
}

func (a *BlockingAddresser) Scheme() string { return a.Inner.Scheme() }

func (a *BlockingAddresser) Address(ctx context.Context, payload []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-a.Release:
	}
	return a.Inner.Address(ctx, payload)
}
