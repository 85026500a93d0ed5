package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Sentinel errors surfaced for constraint violations so services can translate
// them into domain conflicts.
var (
	ErrDuplicate        = errors.New("duplicate record")
	ErrReferenceMissing = errors.New("referenced record missing")
)

const (
	pgUniqueViolation           = "23505"
	pgForeignKeyViolation       = "23503"
	pgInvalidTextRepresentation = "22P02"
)

// ConstraintError carries the violated constraint alongside the sentinel kind.
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v on %s: %v", e.Kind, e.Constraint, e.Err)
}

// Is matches the sentinel kind.
func (e *ConstraintError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// ConstraintName returns the violated constraint for constraint errors.
func ConstraintName(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// IsMalformedInput reports whether Postgres refused a value's text form, such
// as an id that is not a UUID.
func IsMalformedInput(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgInvalidTextRepresentation
}

func mapPGError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, &ConstraintError{Kind: ErrDuplicate, Constraint: pqErr.Constraint, Err: err})
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, &ConstraintError{Kind: ErrReferenceMissing, Constraint: pqErr.Constraint, Err: err})
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
