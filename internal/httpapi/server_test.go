package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokencid/internal/lookup"
	"github.com/roach88/tokencid/internal/testutil"
	"github.com/roach88/tokencid/internal/token"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, maxBatch int) (*Server, []token.Record) {
	t.Helper()
	s := testutil.OpenStore(t)
	var recs []token.Record
	for n := int64(1); n <= 5; n++ {
		content := token.Content(3, n)
		recs = append(recs, token.NewRecord(testutil.SHA1Hex([]byte(content)), 3, n))
	}
	_, err := s.UpsertBatch(context.Background(), recs)
	require.NoError(t, err)

	cache, err := lookup.NewLRUCache(16)
	require.NoError(t, err)
	svc := lookup.New(s, cache, lookup.Config{MaxBatch: maxBatch}, quietLogger())
	return NewServer(svc, quietLogger()), recs
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	w := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "caller-supplied", w.Header().Get(RequestIDHeader))
}

func TestGetToken_Found(t *testing.T) {
	srv, recs := newTestServer(t, 0)
	w := do(t, srv, http.MethodGet, "/token/"+recs[1].Identifier, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, recs[1].Identifier, body["identifier"])
	assert.Equal(t, recs[1].Content, body["content"])
	assert.EqualValues(t, 3, body["token_level"])
	assert.EqualValues(t, 2, body["token_number"])
}

func TestGetToken_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	w := do(t, srv, http.MethodGet, "/token/QmMissing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not_found","identifier":"QmMissing"}`, w.Body.String())
}

func TestBatch_OK(t *testing.T) {
	srv, recs := newTestServer(t, 0)
	body := `{"identifiers":["` + recs[0].Identifier + `","QmMissing","` + recs[0].Identifier + `"]}`
	w := do(t, srv, http.MethodPost, "/tokens/batch", body)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.EqualValues(t, 3, out["total_requested"])
	assert.EqualValues(t, 1, out["total_found"])
	assert.EqualValues(t, 1, out["total_not_found"])
	assert.Equal(t, []any{"QmMissing"}, out["not_found"])

	results := out["results"].(map[string]any)
	require.Contains(t, results, recs[0].Identifier)
	entry := results[recs[0].Identifier].(map[string]any)
	assert.Equal(t, recs[0].Content, entry["content"])
}

func TestBatch_Empty(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	w := do(t, srv, http.MethodPost, "/tokens/batch", `{"identifiers":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"results":{},"not_found":[],"total_requested":0,"total_found":0,"total_not_found":0}`,
		w.Body.String())
}

func TestBatch_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, 2)
	cases := map[string]string{
		"malformed":   `{"identifiers":`,
		"missing":     `{}`,
		"null":        `{"identifiers":null}`,
		"not a list":  `{"identifiers":"QmA"}`,
		"wrong types": `{"identifiers":[1,2]}`,
		"over limit":  `{"identifiers":["a","b","c"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/tokens/batch", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_request", decode(t, w)["error"])
		})
	}
}

// stubLookup returns fixed errors.
type stubLookup struct {
	err error
}

func (s stubLookup) Get(context.Context, string) (token.Record, error) {
	return token.Record{}, s.err
}

func (s stubLookup) Batch(context.Context, []string) (lookup.BatchResult, error) {
	return lookup.BatchResult{}, s.err
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{lookup.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
		{errors.New("disk I/O error"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		srv := NewServer(stubLookup{err: tc.err}, quietLogger())

		w := do(t, srv, http.MethodGet, "/token/QmAny", "")
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, tc.code, decode(t, w)["error"])

		w = do(t, srv, http.MethodPost, "/tokens/batch", `{"identifiers":["QmAny"]}`)
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, tc.code, decode(t, w)["error"])
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
