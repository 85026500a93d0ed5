package models

import "time"

// EnrollmentState represents the settlement lifecycle of an enrollment.
type EnrollmentState string

// Enrollment states. Transitions only move forward except PAID -> PENDING on
// receipt rejection.
const (
	EnrollmentStatePending  EnrollmentState = "PENDING"
	EnrollmentStatePaid     EnrollmentState = "PAID"
	EnrollmentStateVerified EnrollmentState = "VERIFIED"
)

var enrollmentStateRank = map[EnrollmentState]int{
	EnrollmentStatePending:  0,
	EnrollmentStatePaid:     1,
	EnrollmentStateVerified: 2,
}

// Valid reports whether s is a known state.
func (s EnrollmentState) Valid() bool {
	_, ok := enrollmentStateRank[s]
	return ok
}

// Precedes reports whether s comes strictly before other.
func (s EnrollmentState) Precedes(other EnrollmentState) bool {
	return enrollmentStateRank[s] < enrollmentStateRank[other]
}

// Enrollment binds one student to one area offering.
type Enrollment struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"studentId"`
	AreaOfferingID  string          `db:"area_offering_id" json:"areaOfferingId"`
	LevelOfferingID string          `db:"level_offering_id" json:"levelOfferingId"`
	AcademicTutorID *string         `db:"academic_tutor_id" json:"academicTutorId,omitempty"`
	State           EnrollmentState `db:"state" json:"state"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// EnrollmentDetail enriches an enrollment with catalog names.
type EnrollmentDetail struct {
	Enrollment
	ConvocatoriaID string `db:"convocatoria_id" json:"convocatoriaId"`
	AreaName       string `db:"area_name" json:"areaName"`
	LevelName      string `db:"level_name" json:"levelName"`
}
