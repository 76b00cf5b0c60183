package cuckoodex

import (
	"errors"
	"fmt"

	"github.com/hupe1980/cuckoodex/internal/pagestore"
)

var (
	// ErrIndexNotEmpty is returned by Create and Build when the index
	// file already contains data pages.
	ErrIndexNotEmpty = errors.New("index already contains data")

	// ErrBadMagic is returned by Open when the metapage does not carry
	// the cuckoo index magic constant.
	ErrBadMagic = errors.New("not a cuckoo index")

	// ErrEmptyPageReject signals a broken invariant: a tuple could not
	// be placed on a freshly initialized page.
	ErrEmptyPageReject = errors.New("could not add new cuckoo tuple to empty page")

	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("index is closed")

	// ErrNoColumns is returned when an index is created or opened
	// without columns.
	ErrNoColumns = errors.New("index requires at least one column")

	// ErrCorrupted wraps storage-level corruption such as page
	// checksum mismatches.
	ErrCorrupted = errors.New("index is corrupted")
)

// ErrInvalidOption indicates an option value outside its allowed range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidOption struct {
	Name  string
	Value int
	Min   int
	Max   int
	cause error
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("invalid option %s: value %d out of range [%d, %d]", e.Name, e.Value, e.Min, e.Max)
}

func (e *ErrInvalidOption) Unwrap() error { return e.cause }

// ErrColumnMismatch indicates a value slice whose length does not match
// the indexed column count.
type ErrColumnMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrColumnMismatch) Error() string {
	return fmt.Sprintf("column mismatch: index has %d columns, got %d values", e.Expected, e.Actual)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pagestore.ErrChecksum) {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	return err
}
