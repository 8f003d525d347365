package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokencid/internal/addresser"
	"github.com/roach88/tokencid/internal/store"
	"github.com/roach88/tokencid/internal/testutil"
	"github.com/roach88/tokencid/internal/token"
)

// seedRange stores SHA1 records for every number in [from, to].
func seedRange(t *testing.T, path string, level token.Level, from, to int64) {
	t.Helper()
	var recs []token.Record
	for n := from; n <= to; n++ {
		recs = append(recs, sha1Record(level, n))
	}
	seed(t, path, recs...)
}

func TestVerify_Clean(t *testing.T) {
	root := testRoot(t)
	seedRange(t, root.Database, 3, 1, 50)

	stdout, _, err := execute(t, NewVerifyCommand(root), "--level", "3", "--end", "50")
	require.NoError(t, err)
	assert.Equal(t,
		"Verify OK\n"+
			"  level:      3\n"+
			"  range:      1-50\n"+
			"  checked:    50\n"+
			"  ok:         50\n"+
			"  missing:    0\n"+
			"  mismatched: 0\n",
		stdout)
}

func TestVerify_MissingAndMismatched(t *testing.T) {
	root := testRoot(t)
	root.Format = "json"
	seedRange(t, root.Database, 1, 1, 30)

	st, err := store.Open(root.Database, store.Options{})
	require.NoError(t, err)
	bad := sha1Record(1, 5)
	bad.Content = "001deadbeef"
	require.NoError(t, st.Upsert(context.Background(), bad))
	require.NoError(t, st.Close())

	stdout, _, err := execute(t, NewVerifyCommand(root), "--level", "1", "--start", "1", "--end", "35")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data VerifyReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	r := resp.Data
	assert.Equal(t, int64(35), r.Checked)
	assert.Equal(t, int64(29), r.OK)
	assert.Equal(t, int64(5), r.Missing)
	assert.Equal(t, int64(1), r.Mismatched)
	assert.Equal(t, []int64{31, 32, 33, 34, 35}, r.MissingNumbers)
	assert.Equal(t, []int64{5}, r.MismatchedNumbers)
	assert.False(t, r.Clean())
}

func TestVerify_Readdress(t *testing.T) {
	root := testRoot(t)
	seedRange(t, root.Database, 2, 1, 20)

	sha := &testutil.SHA1Addresser{}
	_, _, err := execute(t, newVerifyCommand(&VerifyOptions{RootOptions: root, AddresserOverride: sha}),
		"--level", "2", "--end", "20", "--readdress")
	require.NoError(t, err)
	assert.Equal(t, int64(20), sha.Calls())

	stdout, _, err := execute(t, newVerifyCommand(&VerifyOptions{RootOptions: root, AddresserOverride: addresser.NewDigest()}),
		"--level", "2", "--end", "20", "--readdress")
	require.Error(t, err)
	assert.Contains(t, stdout, "mismatched: 20")
}

func TestVerify_WithoutReaddressSkipsAddresser(t *testing.T) {
	root := testRoot(t)
	seedRange(t, root.Database, 2, 1, 5)

	sha := &testutil.SHA1Addresser{}
	_, _, err := execute(t, newVerifyCommand(&VerifyOptions{RootOptions: root, AddresserOverride: sha}),
		"--level", "2", "--end", "5")
	require.NoError(t, err)
	assert.Zero(t, sha.Calls())
}

func TestVerify_SpansChunks(t *testing.T) {
	root := testRoot(t)
	seedRange(t, root.Database, 4, 1, verifyChunk+5)

	stdout, _, err := execute(t, NewVerifyCommand(root), "--level", "4", "--end", "10010")
	require.Error(t, err)
	assert.Contains(t, stdout, "checked:    10,010")
	assert.Contains(t, stdout, "missing:    5")
	assert.Contains(t, stdout, "first missing:    [10006 10007 10008 10009 10010]")
}

func TestVerify_VerboseReportsChunks(t *testing.T) {
	root := testRoot(t)
	root.Format = "json"
	root.Verbose = true
	seedRange(t, root.Database, 4, 1, verifyChunk+5)

	stdout, stderr, err := execute(t, NewVerifyCommand(root), "--level", "4", "--end", "10010")
	require.Error(t, err)
	assert.Contains(t, stderr, "verified 1-10000: 0 missing, 0 mismatched so far\n")
	assert.Contains(t, stderr, "verified 10001-10010: 5 missing, 0 mismatched so far\n")

	var resp struct {
		Data VerifyReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	assert.Equal(t, int64(5), resp.Data.Missing)
}

func TestVerify_InvalidRange(t *testing.T) {
	root := testRoot(t)
	_, _, err := execute(t, NewVerifyCommand(root), "--level", "0", "--end", "5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
