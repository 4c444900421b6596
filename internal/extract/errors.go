package extract

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when a directory walk finds nothing to extract from.
var ErrNoSources = errors.New("no source files found")

// FormatError reports malformed extraction input. Extraction fails closed:
// a file with a FormatError contributes no examples at all.
type FormatError struct {
	File   string
	Line   int
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// IsFormatError reports whether err (or anything it wraps) is a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
