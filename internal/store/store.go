// Package store persists and loads replicated-document snapshots keyed
// by draft and version. Backends: the remote drafts API (HTTP),
// PostgreSQL, and MinIO object storage.
package store

import (
	"context"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// Common errors.
var (
	// ErrNotFound means no snapshot has ever been saved for the room.
	// Callers treat this as "new document", not as a failure.
	ErrNotFound = errors.New("snapshot not found")
	// ErrValidation means the store rejected the payload.
	ErrValidation = errors.New("snapshot rejected")
)

// SnapshotStore is the document store client contract. Content travels
// base64-encoded with a content checksum; LoadInitialState returns the
// raw decoded bytes ready to apply to a document.
type SnapshotStore interface {
	LoadInitialState(ctx context.Context, draftID, versionID string) ([]byte, error)
	SaveSnapshot(ctx context.Context, draftID, versionID, base64Content, checksum string) error
}

// Checksum returns the hex BLAKE2b-256 digest of the snapshot content.
// It is a pure function of the bytes: identical content always yields an
// identical checksum.
func Checksum(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}
