package session

import "errors"

var (
	// ErrStopped is returned for requests submitted after the coordinator quit.
	ErrStopped = errors.New("session stopped")

	// ErrReadFailed means a read pass did not read a single block.
	ErrReadFailed = errors.New("card read failed")

	// ErrWriteFailed means at least one block of a write plan was not written.
	ErrWriteFailed = errors.New("card write failed")
)
