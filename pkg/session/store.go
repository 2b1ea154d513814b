// Package session persists client session state: the raw bearer token, the
// serialized current-user record, and the token acquisition timestamp. The
// three values live under fixed keys and are always written and cleared as a
// set, so a torn-down session can never leak a stale token or user record
// into the next one.
package session

import (
	"context"
	"errors"
	"time"
)

// Storage keys for session state. All implementations use the same names so
// state written by one backend is inspectable the same way everywhere.
const (
	KeyToken      = "storefront:session:token"
	KeyUser       = "storefront:session:user"
	KeyAcquiredAt = "storefront:session:acquired_at"
)

// ErrNoSession indicates no persisted session exists.
var ErrNoSession = errors.New("no persisted session")

// State is the persisted session snapshot.
type State struct {
	// Token is the raw bearer token as issued by the backend.
	Token string

	// UserJSON is the serialized current-user record, stored opaque.
	// Callers unmarshal it into their own user type.
	UserJSON []byte

	// AcquiredAt is when the token was obtained or last rotated.
	AcquiredAt time.Time
}

// Store persists session state across process restarts.
//
// Save replaces the full state. Load returns ErrNoSession when no token is
// stored. Clear removes all three keys as a set.
type Store interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (State, error)
	Clear(ctx context.Context) error
}
