package gallery

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ValidationError is missing or malformed input. Nothing was written.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// RepositoryError wraps a failure of the row store or blob store. Op is one
// of "upload", "insert", "list", "get" or "delete".
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// CleanupError reports a blob that could not be removed after its row was
// deleted. The delete itself took effect.
type CleanupError struct {
	Bucket string
	Name   string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("blob %s/%s was not removed: %v", e.Bucket, e.Name, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
