package tables

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetNotFound is returned when a DatasetRef does not resolve.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrTableTooLarge is returned when a table exceeds the configured Limits.
	ErrTableTooLarge = errors.New("table exceeds configured limits")

	// ErrUnsupportedFormat is returned for uploads we cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoData is returned when a file holds no usable rows.
	ErrNoData = errors.New("file contains no data")
)

// NotFoundError records which reference failed to resolve.
type NotFoundError struct {
	Ref DatasetRef
}

func (e *NotFoundError) Error() string {
	if e.Ref.Sheet != "" {
		return fmt.Sprintf("dataset %q (sheet %q) not found", e.Ref.DatasetID, e.Ref.Sheet)
	}
	return fmt.Sprintf("dataset %q not found", e.Ref.DatasetID)
}

func (e *NotFoundError) Unwrap() error { return ErrDatasetNotFound }

// IngestError wraps a failure while reading an uploaded file.
type IngestError struct {
	Format string
	Sheet  string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("reading %s sheet %q: %v", e.Format, e.Sheet, e.Err)
	}
	return fmt.Sprintf("reading %s: %v", e.Format, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
