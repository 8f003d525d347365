package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/roach88/tokencid/internal/token"
)

// maxQueryParams bounds the number of bound parameters per IN (...) query,
// well under SQLite's compiled-in limit.
const maxQueryParams = 500

// Get returns the record for identifier, or ErrNotFound.
func (s *Store) Get(ctx context.Context, identifier string) (token.Record, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT identifier, content, level, number
		FROM cache_records
		WHERE identifier = ?
	`, identifier)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Record{}, ErrNotFound
	}
	if err != nil {
		return token.Record{}, readErr("get", err)
	}
	return rec, nil
}

// GetMany returns the records for every identifier that exists. Missing
// identifiers are absent from the map; they never fail the call. Inputs of
// any size are split into chunks that all read the same snapshot.
func (s *Store) GetMany(ctx context.Context, identifiers []string) (map[string]token.Record, error) {
	out := make(map[string]token.Record, len(identifiers))
	if len(identifiers) == 0 {
		return out, nil
	}

	tx, err := s.readTx(ctx)
	if err != nil {
		return nil, readErr("get many", err)
	}
	defer tx.Rollback() // read-only

	for start := 0; start < len(identifiers); start += maxQueryParams {
		end := min(start+maxQueryParams, len(identifiers))
		if err := getChunk(ctx, tx, identifiers[start:end], out); err != nil {
			return nil, readErr("get many", err)
		}
	}
	return out, nil
}

func getChunk(ctx context.Context, tx *sql.Tx, ids []string, out map[string]token.Record) error {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `
		SELECT identifier, content, level, number
		FROM cache_records
		WHERE identifier IN (` + placeholders(len(ids)) + `)`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		out[rec.Identifier] = rec
	}
	return rows.Err()
}

// GetByToken returns every record derived from (level, number), ordered by
// identifier. A token normally maps to one identifier; ErrNotFound is
// returned when it maps to none.
func (s *Store) GetByToken(ctx context.Context, level token.Level, number int64) ([]token.Record, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT identifier, content, level, number
		FROM cache_records
		WHERE level = ? AND number = ?
		ORDER BY identifier COLLATE BINARY ASC
	`, int(level), number)
	if err != nil {
		return nil, readErr("get by token", err)
	}
	defer rows.Close()

	var recs []token.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, readErr("get by token", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("get by token", err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs, nil
}

// TokenRange returns the records for level whose number lies in
// [start, end], keyed by number. When a number maps to several identifiers
// the one that sorts first is kept.
func (s *Store) TokenRange(ctx context.Context, level token.Level, start, end int64) (map[int64]token.Record, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT identifier, content, level, number
		FROM cache_records
		WHERE level = ? AND number BETWEEN ? AND ?
		ORDER BY number ASC, identifier COLLATE BINARY ASC
	`, int(level), start, end)
	if err != nil {
		return nil, readErr("token range", err)
	}
	defer rows.Close()

	out := make(map[int64]token.Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, readErr("token range", err)
		}
		if _, seen := out[rec.Number]; !seen {
			out[rec.Number] = rec
		}
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("token range", err)
	}
	return out, nil
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_records`).Scan(&n); err != nil {
		return 0, readErr("count", err)
	}
	return n, nil
}

// CountByLevel returns the number of records per token level. Levels with
// no rows are absent.
func (s *Store) CountByLevel(ctx context.Context) (map[token.Level]int64, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT level, COUNT(*)
		FROM cache_records
		GROUP BY level
		ORDER BY level ASC
	`)
	if err != nil {
		return nil, readErr("count by level", err)
	}
	defer rows.Close()

	out := make(map[token.Level]int64)
	for rows.Next() {
		var level int
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, readErr("count by level", err)
		}
		out[token.Level(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("count by level", err)
	}
	return out, nil
}

// Scheme returns the recorded addressing scheme, or "" if no build has
// claimed the store yet.
func (s *Store) Scheme(ctx context.Context) (string, error) {
	var v string
	err := s.readDB.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, schemeKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", readErr("scheme", err)
	}
	return v, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (token.Record, error) {
	var rec token.Record
	var level int
	if err := row.Scan(&rec.Identifier, &rec.Content, &level, &rec.Number); err != nil {
		return token.Record{}, err
	}
	rec.Level = token.Level(level)
	return rec, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
