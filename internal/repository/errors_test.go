package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapPGErrorClassifiesConstraintViolations(t *testing.T) {
	dup := mapPGError(&pq.Error{Code: "23505", Constraint: "enrollments_student_area_key"}, "create enrollment")
	assert.ErrorIs(t, dup, ErrDuplicate)
	assert.Equal(t, "enrollments_student_area_key", ConstraintName(dup))

	fk := mapPGError(&pq.Error{Code: "23503", Constraint: "enrollments_academic_tutor_id_fkey"}, "create enrollment")
	assert.ErrorIs(t, fk, ErrReferenceMissing)
	assert.False(t, errors.Is(fk, ErrDuplicate))

	other := mapPGError(errors.New("connection reset"), "create enrollment")
	assert.False(t, errors.Is(other, ErrDuplicate))
	assert.Empty(t, ConstraintName(other))
	assert.Nil(t, mapPGError(nil, "noop"))
}

func TestIsMalformedInputDetectsInvalidText(t *testing.T) {
	malformed := fmt.Errorf("get enrollment: %w", &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "A1"`})
	assert.True(t, IsMalformedInput(malformed))
	assert.False(t, IsMalformedInput(&pq.Error{Code: "23505"}))
	assert.False(t, IsMalformedInput(errors.New("connection reset")))
	assert.False(t, IsMalformedInput(nil))
}
