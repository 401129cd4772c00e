package domain

import (
	"errors"
	"fmt"
)

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrFetch            = errors.New("catalog fetch failed")
	ErrValidation       = errors.New("invalid listing data")
	ErrMutationRejected = errors.New("mutation rejected by remote catalog")
	ErrPersistence      = errors.New("durable store write failed")
	ErrForbidden        = errors.New("user not authorized to perform this action")
	ErrUnauthenticated  = errors.New("user is not signed in")
	ErrNotRetryable     = errors.New("listing has no failed mutation to retry")
	ErrKeyNotFound      = errors.New("key not found in store")
	ErrInvalidFilter    = errors.New("invalid filter parameters")
)

// ValidationError reports the first taxonomy or field rule a listing breaks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid listing: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FetchError is returned when the remote catalog could not be read. The listings
// returned next to it are the last known ones.
type FetchError struct {
	Category string
	Stale    bool
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch category %q: %v", e.Category, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// MutationError describes a remote write that failed after the local state was already changed.
type MutationError struct {
	Op        string
	ListingID int64
	Err       error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s listing %d: %v", e.Op, e.ListingID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

func (e *MutationError) Is(target error) bool {
	return target == ErrMutationRejected
}

// PersistenceError wraps a failed write to the durable key-value store.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
