package lambada

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownVariant is returned when a variant name is not in the registry.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrFetch is returned when a variant's source could not be materialized.
	ErrFetch = errors.New("fetching source")

	// ErrParse is returned when a line of the source file is not a valid record.
	ErrParse = errors.New("parsing record")

	// ErrMissingText is returned (alongside ErrParse) when a line has no `text` string.
	ErrMissingText = errors.New("missing text field")

	// ErrInvalidUTF8 is returned (alongside ErrParse) when a line is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")

	// ErrFilesystem is returned when the local source file can't be opened or read.
	ErrFilesystem = errors.New("reading source file")
)

// ParseError describes a line that could not be turned into a Record.
type ParseError struct {
	Index int // 0-based line offset
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing record at line %d: %v", e.Index, e.Err)
}

// Unwrap allows errors.Is to match both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
