package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tokencid/internal/token"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRecord builds a record whose identifier is derived from the token so
// that distinct tokens never collide.
func testRecord(level token.Level, number int64) token.Record {
	content := token.Content(level, number)
	return token.NewRecord("id-"+content[:16], level, number)
}
