package addresser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokencid/internal/token"
)

func TestDigest_Deterministic(t *testing.T) {
	d := NewDigest()
	payload := []byte(token.Content(3, 1423543))

	first, err := d.Address(context.Background(), payload)
	require.NoError(t, err)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, first)

	for i := 0; i < 5; i++ {
		again, err := d.Address(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, SchemeDigest, d.Scheme())
}

func TestDigest_DistinctContent(t *testing.T) {
	d := NewDigest()
	a, err := d.Address(context.Background(), []byte(token.Content(1, 1)))
	require.NoError(t, err)
	b, err := d.Address(context.Background(), []byte(token.Content(1, 2)))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDigest_EmptyPayload(t *testing.T) {
	_, err := NewDigest().Address(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestWithTimeout_HangBecomesTimeout(t *testing.T) {
	stuck := Func{Name: "stuck", Fn: func(ctx context.Context, _ []byte) (string, error) {
		<-ctx.Done()
		time.Sleep(500 * time.Millisecond) // ignore cancellation for a while
		return "late", nil
	}}
	a := WithTimeout(stuck, 20*time.Millisecond)

	start := time.Now()
	_, err := a.Address(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, "stuck", a.Scheme())
}

func TestWithTimeout_PassesThroughSuccess(t *testing.T) {
	ok := Func{Name: "ok", Fn: func(context.Context, []byte) (string, error) { return "id", nil }}
	id, err := WithTimeout(ok, time.Second).Address(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "id", id)
}

func TestWithTimeout_ZeroIsIdentity(t *testing.T) {
	ok := Func{Name: "ok"}
	assert.Equal(t, Addresser(ok), WithTimeout(ok, 0))
}

func TestWithRetry_RecoversAfterFailures(t *testing.T) {
	var calls atomic.Int32
	flaky := Func{Name: "flaky", Fn: func(context.Context, []byte) (string, error) {
		if calls.Add(1) < 3 {
			return "", newError(KindProcessFailure, "boom", nil)
		}
		return "id", nil
	}}

	id, err := WithRetry(flaky, 3, time.Millisecond).Address(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "id", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWithRetry_Bounded(t *testing.T) {
	var calls atomic.Int32
	failing := Func{Name: "failing", Fn: func(context.Context, []byte) (string, error) {
		calls.Add(1)
		return "", newError(KindProcessFailure, "boom", nil)
	}}

	_, err := WithRetry(failing, 4, time.Millisecond).Address(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWithRetry_DoesNotRetryInvalidInput(t *testing.T) {
	var calls atomic.Int32
	invalid := Func{Name: "invalid", Fn: func(context.Context, []byte) (string, error) {
		calls.Add(1)
		return "", newError(KindInvalidInput, "bad", nil)
	}}

	_, err := WithRetry(invalid, 5, time.Millisecond).Address(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindProcessFailure, KindOf(errors.New("x")))
	assert.Equal(t, KindInvalidInput, KindOf(newError(KindInvalidInput, "x", nil)))
}

// fakeIPFS writes a shell script that mimics `ipfs add --only-hash -Q` by
// echoing a fixed identifier, or failing when asked to.
func fakeIPFS(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ipfs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestIPFSCommand_Success(t *testing.T) {
	bin := fakeIPFS(t, `cat >/dev/null; echo "QmFake$IPFS_PATH"`)
	c := NewIPFSCommand(bin, "repo")

	id, err := c.Address(context.Background(), []byte(token.Content(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "QmFakerepo", id)
	assert.Equal(t, SchemeIPFS, c.Scheme())
}

func TestIPFSCommand_NonZeroExit(t *testing.T) {
	bin := fakeIPFS(t, `echo "no repo" >&2; exit 1`)
	_, err := NewIPFSCommand(bin, "").Address(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, KindProcessFailure, KindOf(err))
	assert.Contains(t, err.Error(), "no repo")
}

func TestIPFSCommand_EmptyOutput(t *testing.T) {
	bin := fakeIPFS(t, `cat >/dev/null`)
	_, err := NewIPFSCommand(bin, "").Address(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, KindProcessFailure, KindOf(err))
}

func TestIPFSCommand_MissingBinary(t *testing.T) {
	_, err := NewIPFSCommand(filepath.Join(t.TempDir(), "nope"), "").Address(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, KindProcessFailure, KindOf(err))
}

func TestIPFSHTTP_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("only-hash"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Name":"token","Hash":"QmHTTP","Size":"75"}`))
	}))
	defer srv.Close()

	h := NewIPFSHTTP(srv.URL, time.Second)
	defer h.Close()

	id, err := h.Address(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "QmHTTP", id)
}

func TestIPFSHTTP_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "daemon offline", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewIPFSHTTP(srv.URL, time.Second)
	defer h.Close()

	_, err := h.Address(context.Background(), []byte("payload"))
	require.Error(t, err)
	assert.Equal(t, KindProcessFailure, KindOf(err))
}

func TestNew(t *testing.T) {
	a, err := New(Options{Kind: NameDigest, Timeout: time.Second, Attempts: 2})
	require.NoError(t, err)
	assert.Equal(t, SchemeDigest, a.Scheme())

	a, err = New(Options{Kind: ""})
	require.NoError(t, err)
	assert.Equal(t, SchemeIPFS, a.Scheme())

	_, err = New(Options{Kind: NameIPFSHTTP})
	require.Error(t, err)

	_, err = New(Options{Kind: "carrier-pigeon"})
	require.Error(t, err)
}
