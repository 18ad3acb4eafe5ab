// Package room defines the composite identifier addressing one
// collaboratively edited document: a draft UUID plus a version UUID.
package room

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID addresses one room. Both parts are validated UUIDs; a malformed id
// never reaches a session lookup or a store call.
type ID struct {
	DraftID   uuid.UUID
	VersionID uuid.UUID
}

// Parse validates a "<draftId>:<versionId>" composite key.
func Parse(raw string) (ID, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return ID{}, fmt.Errorf("room id %q: want \"<draftId>:<versionId>\"", raw)
	}
	return New(parts[0], parts[1])
}

// New validates the two halves of a room id separately, for callers that
// receive them as distinct path segments.
func New(draftID, versionID string) (ID, error) {
	draft, err := uuid.Parse(draftID)
	if err != nil {
		return ID{}, fmt.Errorf("draft id %q: %w", draftID, err)
	}
	version, err := uuid.Parse(versionID)
	if err != nil {
		return ID{}, fmt.Errorf("version id %q: %w", versionID, err)
	}
	return ID{DraftID: draft, VersionID: version}, nil
}

// String returns the canonical "<draftId>:<versionId>" form.
func (id ID) String() string {
	return id.DraftID.String() + ":" + id.VersionID.String()
}
