package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the source file could not be located.
	ErrNotFound = errors.New("data source not found")
	// ErrMalformed means a required column is missing or a value could not be parsed.
	ErrMalformed = errors.New("malformed data")
)

// DataError is a terminal load failure. Kind is ErrNotFound or ErrMalformed.
type DataError struct {
	Kind   error
	Source string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *DataError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFound(source string, err error) *DataError {
	return &DataError{Kind: ErrNotFound, Source: source, Err: err}
}

func malformed(source string, format string, args ...any) *DataError {
	return &DataError{Kind: ErrMalformed, Source: source, Err: fmt.Errorf(format, args...)}
}
