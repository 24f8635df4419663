package rowcask

import (
	"errors"
	"fmt"

	"github.com/yonwoo9/go-rowcask/internal/codec"
)

var (
	// ErrNotFound is returned for a row id that was never assigned or was deleted.
	ErrNotFound = errors.New("row not found")
	// ErrValueTooLarge is returned by Put when the payload exceeds MaxValueSize.
	ErrValueTooLarge = codec.ErrValueTooLarge
	// ErrCapacityExceeded is returned by Put when the data log would grow past MaxDBSize.
	ErrCapacityExceeded = codec.ErrCapacityExceeded
	// ErrCorruptHeader is returned by Open when the files fail validation.
	// The store cannot be used.
	ErrCorruptHeader = errors.New("corrupt header")
	// ErrCorruptRecord is returned by Get and Scan for a malformed record.
	// Other rows remain readable.
	ErrCorruptRecord = codec.ErrCorruptRecord
	// ErrIOFailure wraps every failed file operation.
	ErrIOFailure = errors.New("I/O operation failed")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrLocked is returned by Open when another handle holds the store.
	ErrLocked = errors.New("store is locked by another process")
	// ErrInvalidConfig is returned by Open for out of range options.
	ErrInvalidConfig = errors.New("invalid config")
)

// LimitError carries the size and limit behind ErrValueTooLarge and
// ErrCapacityExceeded.
type LimitError = codec.LimitError

// RowError reports a failure tied to a single row: ErrNotFound or
// ErrCorruptRecord.
type RowError struct {
	RowID uint64
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.RowID, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func notFound(rowID uint64) error {
	return &RowError{RowID: rowID, Err: ErrNotFound}
}

func ioFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIOFailure, op, err)
}

func corruptHeader(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptHeader, fmt.Sprintf(format, args...))
}
