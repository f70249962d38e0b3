package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleCursor is returned when a fetch-more names a cursor that is not
	// the end of the cached feed
	ErrStaleCursor = errors.New("stale feed cursor")
	// ErrToggleInFlight is returned while a toggle for the same item is pending
	ErrToggleInFlight = errors.New("like toggle already in flight")
	// ErrUnauthenticated is returned when a guest tries to toggle a like
	ErrUnauthenticated = errors.New("viewer is not authenticated")
)

// LoadError reports a failed initial or paginated fetch
type LoadError struct {
	Key Key
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s feed: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// MutationError reports a failed like toggle. No cache was written.
type MutationError struct {
	ItemID string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("toggle like on %s: %v", e.ItemID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
