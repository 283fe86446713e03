package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRowNotFound is returned when an update or read targets a row key
	// that does not exist in the keyspace.
	ErrRowNotFound = errors.New("row not found")

	// ErrRowExists is returned when a create with an explicit row key
	// collides with an existing row.
	ErrRowExists = errors.New("row already exists")

	// ErrKeySpaceNotFound is returned when an operation names an
	// unregistered keyspace.
	ErrKeySpaceNotFound = errors.New("keyspace not found")

	// ErrIndexMismatch is returned when a keyspace is re-registered with
	// index definitions that conflict with its persisted metadata.
	ErrIndexMismatch = errors.New("keyspace index definitions conflict with persisted metadata")
)

// IndexConsistencyError reports that reindexing could not locate an entry it
// expected to remove. It should be unreachable while the index invariant
// holds; observing it means the index is corrupt, so it is surfaced rather
// than swallowed.
type IndexConsistencyError struct {
	KeySpace string
	Def      IndexDefinition
	RowKey   int64
}

func (e *IndexConsistencyError) Error() string {
	return fmt.Sprintf("index corruption: no entry for row %d in index (%s, %s) of keyspace %s",
		e.RowKey, e.Def.Column, e.Def.Path, e.KeySpace)
}

// HandlerError aggregates handler failures from a single write. It is
// surfaced after the underlying transaction has committed: the row and index
// state it accompanies is durable.
type HandlerError struct {
	Errors []error
}

func (e *HandlerError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d handler(s) failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *HandlerError) Unwrap() []error { return e.Errors }

// StorageError wraps a failure from the underlying storage engine. The
// transaction it occurred in has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
