package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tokencid/internal/token"
)

const upsertSQL = `
	INSERT INTO cache_records (identifier, content, level, number)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(identifier) DO UPDATE SET
		content = excluded.content,
		level   = excluded.level,
		number  = excluded.number
`

const schemeKey = "addressing_scheme"

// Upsert inserts rec or fully replaces the row with the same identifier.
// Last writer wins; there is no versioning.
func (s *Store) Upsert(ctx context.Context, rec token.Record) error {
	if rec.Identifier == "" {
		return writeErr("upsert", errors.New("empty identifier"))
	}
	_, err := s.db.ExecContext(ctx, upsertSQL, rec.Identifier, rec.Content, int(rec.Level), rec.Number)
	if err != nil {
		return writeErr("upsert", err)
	}
	return nil
}

// UpsertBatch writes recs in a single transaction and returns how many rows
// were written. Either every record in the batch becomes visible to readers
// or none does.
func (s *Store) UpsertBatch(ctx context.Context, recs []token.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	for i := range recs {
		if recs[i].Identifier == "" {
			return 0, writeErr("upsert batch", fmt.Errorf("record %d: empty identifier", i))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeErr("upsert batch", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, writeErr("upsert batch", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.Identifier, rec.Content, int(rec.Level), rec.Number); err != nil {
			return 0, writeErr("upsert batch", fmt.Errorf("%s: %w", rec.Identifier, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, writeErr("upsert batch", err)
	}
	return len(recs), nil
}

// ClaimScheme records scheme as the store's addressing scheme if none is
// set yet. If a different scheme is already recorded it returns an error
// wrapping ErrSchemeMismatch and leaves the store untouched.
func (s *Store) ClaimScheme(ctx context.Context, scheme string) error {
	if scheme == "" {
		return writeErr("claim scheme", errors.New("empty scheme"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("claim scheme", err)
	}
	defer tx.Rollback() // No-op if committed

	var current string
	err = tx.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, schemeKey).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES (?, ?)`, schemeKey, scheme); err != nil {
			return writeErr("claim scheme", err)
		}
		if err := tx.Commit(); err != nil {
			return writeErr("claim scheme", err)
		}
		s.logger.Info("addressing scheme recorded", "scheme", scheme)
		return nil
	case err != nil:
		return readErr("claim scheme", err)
	case current != scheme:
		return fmt.Errorf("%w: store holds %q, build uses %q", ErrSchemeMismatch, current, scheme)
	default:
		return nil
	}
}
