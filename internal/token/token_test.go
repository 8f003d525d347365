package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_KnownValue(t *testing.T) {
	// sha256("1")
	want := "003" + "6b86b273ff34fce19d6b804eff5a3f5747ada4eaa22f1d49c01e52ddb7875b4b"
	assert.Equal(t, want, Content(3, 1))
}

func TestContent_Deterministic(t *testing.T) {
	for _, level := range Levels() {
		for _, n := range []int64{1, 2, 999, 1_000_000, level.MaxNumber()} {
			first := Content(level, n)
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, Content(level, n), "level=%d number=%d", level, n)
			}
		}
	}
}

func TestContent_Shape(t *testing.T) {
	c := Content(1, 42)
	require.Len(t, c, 67)
	assert.Equal(t, "001", c[:3])
	assert.Equal(t, Hash(42), c[3:])
}

func TestContent_DistinctPerToken(t *testing.T) {
	assert.NotEqual(t, Content(1, 1), Content(2, 1))
	assert.NotEqual(t, Content(1, 1), Content(1, 2))
}

func TestLevel_MaxNumber(t *testing.T) {
	assert.Equal(t, int64(4_300_000), Level(1).MaxNumber())
	assert.Equal(t, int64(2_425_000), Level(2).MaxNumber())
	assert.Equal(t, int64(2_303_750), Level(3).MaxNumber())
	assert.Equal(t, int64(2_188_563), Level(4).MaxNumber())
	assert.Zero(t, Level(5).MaxNumber())
	assert.False(t, Level(0).Valid())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(1, 1))
	assert.NoError(t, Validate(4, 2_188_563))
	assert.Error(t, Validate(4, 2_188_564))
	assert.Error(t, Validate(0, 1))
	assert.Error(t, Validate(2, 0))
}

func TestRange_Normalize(t *testing.T) {
	tests := []struct {
		name        string
		in          Range
		want        Range
		wantClamped bool
		wantErr     bool
	}{
		{"in bounds", Range{3, 1, 500}, Range{3, 1, 500}, false, false},
		{"clamped end", Range{4, 2_188_000, 9_999_999}, Range{4, 2_188_000, 2_188_563}, true, false},
		{"bad level", Range{7, 1, 10}, Range{}, false, true},
		{"zero start", Range{1, 0, 10}, Range{}, false, true},
		{"start after end", Range{1, 10, 5}, Range{}, false, true},
		{"start beyond max", Range{3, 3_000_000, 4_000_000}, Range{}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped, err := tt.in.Normalize()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClamped, clamped)
		})
	}
}

func TestRange_Len(t *testing.T) {
	assert.Equal(t, int64(500), Range{Level: 3, Start: 1, End: 500}.Len())
	assert.Equal(t, int64(1), Range{Level: 3, Start: 7, End: 7}.Len())
	assert.Zero(t, Range{Level: 3, Start: 8, End: 7}.Len())
}

func TestNewRecord(t *testing.T) {
	r := NewRecord("cid-1", 2, 10)
	assert.Equal(t, Record{Identifier: "cid-1", Content: Content(2, 10), Level: 2, Number: 10}, r)
}
