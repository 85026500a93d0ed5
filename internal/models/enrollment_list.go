package models

import "time"

// EnrollmentList is a batch of enrollments submitted by an educational unit.
type EnrollmentList struct {
	ID                string    `db:"id" json:"id"`
	EducationalUnitID string    `db:"educational_unit_id" json:"educationalUnitId"`
	ConvocatoriaID    string    `db:"convocatoria_id" json:"convocatoriaId"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// ListDetail is one (student, area, level) entry of a list.
type ListDetail struct {
	ID              string    `db:"id" json:"id"`
	ListID          string    `db:"list_id" json:"listId"`
	StudentID       string    `db:"student_id" json:"studentId"`
	AreaOfferingID  string    `db:"area_offering_id" json:"areaOfferingId"`
	LevelOfferingID string    `db:"level_offering_id" json:"levelOfferingId"`
	AcademicTutorID *string   `db:"academic_tutor_id" json:"academicTutorId,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// EnrollmentListDetail is a list header with its entries.
type EnrollmentListDetail struct {
	EnrollmentList
	Details []ListDetail `json:"details"`
}
