package services

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when an operation targets a post that does not exist.
type NotFoundError struct {
	ID string
	Op string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("post with id %s not found (%s)", e.ID, e.Op)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func notFound(id, op string) error {
	return &NotFoundError{ID: id, Op: op}
}
