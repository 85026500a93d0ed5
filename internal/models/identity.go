package models

import "time"

// Student is a competitor identified by national ID.
type Student struct {
	ID                string     `db:"id" json:"id"`
	NationalID        string     `db:"national_id" json:"nationalId"`
	FirstNames        string     `db:"first_names" json:"firstNames"`
	LastNames         string     `db:"last_names" json:"lastNames"`
	BirthDate         *time.Time `db:"birth_date" json:"birthDate,omitempty"`
	Email             *string    `db:"email" json:"email,omitempty"`
	EducationalUnitID string     `db:"educational_unit_id" json:"educationalUnitId"`
	GradeID           string     `db:"grade_id" json:"gradeId"`
	LegalTutorID      string     `db:"legal_tutor_id" json:"legalTutorId"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// Tutor holds the shared columns of legal and academic tutors.
type Tutor struct {
	ID         string    `db:"id" json:"id"`
	NationalID string    `db:"national_id" json:"nationalId"`
	FirstNames string    `db:"first_names" json:"firstNames"`
	LastNames  string    `db:"last_names" json:"lastNames"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// TutorKind selects the tutor table.
type TutorKind string

// Tutor kinds.
const (
	TutorKindLegal    TutorKind = "legal"
	TutorKindAcademic TutorKind = "academic"
)

// Table returns the backing table for the kind.
func (k TutorKind) Table() string {
	if k == TutorKindAcademic {
		return "academic_tutors"
	}
	return "legal_tutors"
}
