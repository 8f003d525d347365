package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokencid/internal/store"
	"github.com/roach88/tokencid/internal/token"
)

func TestStats_Text(t *testing.T) {
	root := testRoot(t)
	seedRange(t, root.Database, 1, 1, 43)
	seedRange(t, root.Database, 3, 1, 7)

	stdout, _, err := execute(t, NewStatsCommand(root))
	require.NoError(t, err)
	assert.Contains(t, stdout, "database: "+root.Database+"\n")
	assert.Contains(t, stdout, "scheme:   (none)\n")
	assert.Contains(t, stdout, "total:    50\n")
	assert.Contains(t, stdout, "  level 1: 43 / 4,300,000 (0.00%)\n")
	assert.Contains(t, stdout, "  level 2: 0 / 2,425,000 (0.00%)\n")
	assert.Contains(t, stdout, "  level 3: 7 / 2,303,750 (0.00%)\n")
}

func TestStats_JSON(t *testing.T) {
	root := testRoot(t)
	root.Format = "json"
	seedRange(t, root.Database, 2, 1, 10)

	st, err := store.Open(root.Database, store.Options{})
	require.NoError(t, err)
	require.NoError(t, st.ClaimScheme(context.Background(), "test-sha1"))
	require.NoError(t, st.Close())

	stdout, _, err := execute(t, NewStatsCommand(root))
	require.NoError(t, err)

	var resp struct {
		Data StoreStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	s := resp.Data
	assert.Equal(t, int64(10), s.Total)
	assert.Equal(t, "test-sha1", s.Scheme)
	require.Len(t, s.Levels, 4)
	assert.Equal(t, LevelCount{Level: 2, Count: 10, Max: token.Level(2).MaxNumber()}, s.Levels[1])
	assert.Zero(t, s.Levels[3].Count)
}

func TestStoreStats_Coverage(t *testing.T) {
	s := StoreStats{
		Path:   "x.db",
		Scheme: "ipfs-add",
		Total:  2_150_000,
		Levels: []LevelCount{{Level: 1, Count: 2_150_000, Max: 4_300_000}},
	}
	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	assert.Equal(t,
		"database: x.db\nscheme:   ipfs-add\ntotal:    2,150,000\n  level 1: 2,150,000 / 4,300,000 (50.00%)\n",
		buf.String())
}
