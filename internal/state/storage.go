package state

import (
	"context"
	"time"
)

// Storage abstracts persistence of user dialog states.
type Storage interface {
	// GetState returns ErrStateNotFound when the user has no state yet.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// SetState overwrites the whole state of a user.
	SetState(ctx context.Context, userID int64, state *UserState) error
	ClearState(ctx context.Context, userID int64) error
	// CleanupOldStates removes states not updated within maxAge and returns how many were removed.
	CleanupOldStates(ctx context.Context, maxAge time.Duration) (int64, error)
	// CountStates returns the number of stored users per state.
	CountStates(ctx context.Context) (map[State]int, error)
}
