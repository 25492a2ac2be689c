package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ItemFailure records why one member of a batch was rejected.
type ItemFailure struct {
	Index int
	Err   error
}

// BulkInsertError is returned by an unordered batch insert when some, but
// not necessarily all, rows were rejected by the store. Inserted holds the
// rows that made it.
type BulkInsertError struct {
	Inserted []Article
	Failures []ItemFailure
}

func (e *BulkInsertError) Error() string {
	if len(e.Failures) == 0 {
		return "bulk insert: no failures"
	}
	return fmt.Sprintf("bulk insert: %d of %d rows rejected, first: %v",
		len(e.Failures), len(e.Failures)+len(e.Inserted), e.Failures[0].Err)
}

// FailedIndexes returns the batch positions that were rejected.
func (e *BulkInsertError) FailedIndexes() map[int]struct{} {
	idx := make(map[int]struct{}, len(e.Failures))
	for _, f := range e.Failures {
		idx[f.Index] = struct{}{}
	}
	return idx
}
