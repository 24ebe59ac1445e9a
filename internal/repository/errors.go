package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate marks a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// translate maps driver errors onto repository sentinels, keeping the original in the chain.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &duplicateError{constraint: pqErr.Constraint, err: err}
	}
	return err
}

type duplicateError struct {
	constraint string
	err        error
}

func (e *duplicateError) Error() string { return "duplicate record (" + e.constraint + ")" }

func (e *duplicateError) Unwrap() error { return e.err }

func (e *duplicateError) Is(target error) bool { return target == ErrDuplicate }

// DuplicateConstraint returns the violated constraint name, if any.
func DuplicateConstraint(err error) string {
	var dup *duplicateError
	if errors.As(err, &dup) {
		return dup.constraint
	}
	return ""
}
