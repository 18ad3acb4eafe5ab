package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Postgres stores snapshots in the draft_snapshots table, one row per
// room, upserted on every save.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed snapshot store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadInitialState returns the stored snapshot bytes for a room, or
// ErrNotFound if the room has never been persisted.
func (s *Postgres) LoadInitialState(ctx context.Context, draftID, versionID string) ([]byte, error) {
	const query = `
		SELECT content FROM draft_snapshots
		WHERE draft_id = $1 AND version_id = $2`
	var content []byte
	err := s.db.QueryRowContext(ctx, query, draftID, versionID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return content, nil
}

// SaveSnapshot upserts the snapshot row for a room.
func (s *Postgres) SaveSnapshot(ctx context.Context, draftID, versionID, base64Content, checksum string) error {
	if base64Content == "" || checksum == "" {
		return fmt.Errorf("save snapshot: %w: content and checksum are required", ErrValidation)
	}
	const upsert = `
		INSERT INTO draft_snapshots (draft_id, version_id, content, checksum, updated_at)
		VALUES ($1, $2, decode($3, 'base64'), $4, NOW())
		ON CONFLICT (draft_id, version_id)
		DO UPDATE SET content = EXCLUDED.content, checksum = EXCLUDED.checksum, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, upsert, draftID, versionID, base64Content, checksum); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
