package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Level is a token level in [MinLevel, MaxLevel].
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 4
)

// limits holds the highest valid token number per level.
var limits = map[Level]int64{
	1: 4_300_000,
	2: 2_425_000,
	3: 2_303_750,
	4: 2_188_563,
}

// Levels returns all valid levels in ascending order.
func Levels() []Level {
	return []Level{1, 2, 3, 4}
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := limits[l]
	return ok
}

// MaxNumber returns the highest valid token number for the level,
// or 0 if the level is unknown.
func (l Level) MaxNumber() int64 {
	return limits[l]
}

// Range is an inclusive range of token numbers within one level.
type Range struct {
	Level Level `json:"level"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of tokens in the range.
func (r Range) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Normalize validates the range and clamps End to the level maximum.
// The second return value reports whether End was clamped.
func (r Range) Normalize() (Range, bool, error) {
	if !r.Level.Valid() {
		return r, false, fmt.Errorf("invalid level %d: must be %d-%d", r.Level, MinLevel, MaxLevel)
	}
	if r.Start < 1 {
		return r, false, fmt.Errorf("invalid start %d: must be >= 1", r.Start)
	}
	clamped := false
	if max := r.Level.MaxNumber(); r.End > max {
		r.End = max
		clamped = true
	}
	if r.Start > r.End {
		return r, clamped, fmt.Errorf("invalid range %d..%d for level %d", r.Start, r.End, r.Level)
	}
	return r, clamped, nil
}

// Validate checks that (level, number) lies inside the token space.
func Validate(level Level, number int64) error {
	if !level.Valid() {
		return fmt.Errorf("invalid level %d: must be %d-%d", level, MinLevel, MaxLevel)
	}
	if number < 1 || number > level.MaxNumber() {
		return fmt.Errorf("invalid number %d for level %d: must be 1-%d", number, level, level.MaxNumber())
	}
	return nil
}

// Hash returns hex(sha256(decimal(number))).
func Hash(number int64) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(number, 10)))
	return hex.EncodeToString(sum[:])
}

// Content returns the deterministic payload for (level, number).
// It does not check bounds; callers that accept external input use Validate.
func Content(level Level, number int64) string {
	return fmt.Sprintf("%03d", int(level)) + Hash(number)
}

// Record is the persisted row: an identifier and the token it addresses.
type Record struct {
	Identifier string `json:"identifier"`
	Content    string `json:"content"`
	Level      Level  `json:"token_level"`
	Number     int64  `json:"token_number"`
}

// NewRecord builds a Record for (level, number) with a precomputed identifier.
func NewRecord(identifier string, level Level, number int64) Record {
	return Record{
		Identifier: identifier,
		Content:    Content(level, number),
		Level:      level,
		Number:     number,
	}
}
