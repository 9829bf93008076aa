package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore over one collection.
type recordStore struct {
	store      *Store
	collection string
	owned      bool
}

var _ driven.RecordStore = (*recordStore)(nil)

// Count returns the number of records in the collection.
func (s *recordStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// QueryAll returns every record in the collection ordered by id.
func (s *recordStore) QueryAll(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT body FROM records WHERE collection = ? ORDER BY id", s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return out, nil
}

// Upsert stores the record, replacing any previous version with the same id.
func (s *recordStore) Upsert(ctx context.Context, rec domain.Record) error {
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("%w: record has no id", domain.ErrInvalidInput)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record %s: %w", id, err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, s.collection, id, string(body), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting record %s: %w", id, err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *recordStore) Get(ctx context.Context, id string) (domain.Record, error) {
	var body string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT body FROM records WHERE collection = ? AND id = ?", s.collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	return decodeRecord(body)
}

// Close closes the database if this collection owns it.
func (s *recordStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.store.Close()
}

func decodeRecord(body string) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return rec, nil
}
