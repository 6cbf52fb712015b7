// Package store persists room state.
//
// A Store holds one encoded game.State per room code with an expiry. Writes
// are whole-state and guarded by the state's Revision: Update succeeds only
// when the caller's revision matches the stored one, and every successful
// write advances it. Callers resolve ErrConflict by reloading and reapplying
// their change.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lox/downforce/internal/game"
)

// DefaultTTL is how long a room lives after its last write.
const DefaultTTL = 4 * time.Hour

var (
	ErrNotFound = errors.New("store: room not found")
	ErrExists   = errors.New("store: room already exists")
	ErrConflict = errors.New("store: revision conflict")
)

// Store is the storage contract the room service depends on.
type Store interface {
	// Get returns a private copy of the room's state, or ErrNotFound when
	// the room is absent or expired.
	Get(ctx context.Context, code string) (*game.State, error)

	// Create inserts a room that does not exist yet. The stored revision
	// starts at 1 and s.Revision is set to match.
	Create(ctx context.Context, code string, s *game.State, ttl time.Duration) error

	// Update replaces the room's state if s.Revision equals the stored
	// revision, renews the expiry and advances s.Revision.
	Update(ctx context.Context, code string, s *game.State, ttl time.Duration) error

	// Delete removes the room. Deleting a missing room is not an error.
	Delete(ctx context.Context, code string) error

	// DeleteAt removes the room only if its stored revision equals
	// revision. It returns ErrConflict when another write got there first
	// and ErrNotFound when the room is absent or expired.
	DeleteAt(ctx context.Context, code string, revision uint64) error

	// Exists reports whether a live room holds code.
	Exists(ctx context.Context, code string) (bool, error)

	// Sweep drops expired rooms and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	Close() error
}
