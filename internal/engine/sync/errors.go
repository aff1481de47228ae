package sync

import (
	"errors"
	"fmt"
)

// Standard errors returned by the sync engine.
var (
	// ErrDelimiterMissing indicates the scratch buffer's delimiter grammar
	// was violated by a user edit: a delimiter line was deleted,
	// duplicated, or altered. The edit never reaches the document store;
	// the user must undo in the buffer.
	ErrDelimiterMissing = errors.New("scratch buffer delimiter missing or corrupted")

	// ErrWriteBackFailed indicates the document store rejected the
	// composite edit. Region ranges are unchanged, so a retry starts from
	// a known-consistent state.
	ErrWriteBackFailed = errors.New("write-back rejected by document store")
)

// DelimiterError carries the detail of a grammar violation.
type DelimiterError struct {
	Expected int
	Found    int
	Detail   string
}

// Error implements the error interface.
func (e *DelimiterError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s", ErrDelimiterMissing, e.Detail)
	}
	return fmt.Sprintf("%v: expected %d regions, found %d", ErrDelimiterMissing, e.Expected, e.Found)
}

// Unwrap returns ErrDelimiterMissing so callers can match the class.
func (e *DelimiterError) Unwrap() error {
	return ErrDelimiterMissing
}
