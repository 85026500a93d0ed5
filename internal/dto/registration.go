package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// TutorPayload identifies a legal or academic tutor by national ID.
type TutorPayload struct {
	NationalID string  `json:"nationalId" validate:"required,max=20"`
	FirstNames string  `json:"firstNames" validate:"required,max=120"`
	LastNames  string  `json:"lastNames" validate:"required,max=120"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
}

// StudentPayload identifies a student by national ID.
type StudentPayload struct {
	NationalID        string     `json:"nationalId" validate:"required,max=20"`
	FirstNames        string     `json:"firstNames" validate:"required,max=120"`
	LastNames         string     `json:"lastNames" validate:"required,max=120"`
	BirthDate         *time.Time `json:"birthDate"`
	Email             *string    `json:"email" validate:"omitempty,email"`
	EducationalUnitID string     `json:"educationalUnitId" validate:"required"`
	GradeID           string     `json:"gradeId" validate:"required"`
}

// AreaSelection picks one level within one area offering.
type AreaSelection struct {
	AreaOfferingID  string `json:"areaOfferingId" validate:"required"`
	LevelOfferingID string `json:"levelOfferingId" validate:"required"`
}

// CompleteRegistrationRequest creates identities, enrollments and the order at once.
type CompleteRegistrationRequest struct {
	Student        StudentPayload  `json:"student"`
	LegalTutor     TutorPayload    `json:"legalTutor"`
	AcademicTutor  *TutorPayload   `json:"academicTutor" validate:"omitempty"`
	AreaSelections []AreaSelection `json:"areaSelections" validate:"required,min=1,dive"`
	DueDate        *time.Time      `json:"dueDate"`
}

// CompleteRegistrationResponse is returned after a successful registration.
type CompleteRegistrationResponse struct {
	Student      models.Student      `json:"student"`
	Enrollments  []models.Enrollment `json:"enrollments"`
	PaymentOrder models.PaymentOrder `json:"paymentOrder"`
	TotalCost    decimal.Decimal     `json:"totalCost"`
}

// EnrollRequest enrolls an already registered student in one area.
type EnrollRequest struct {
	StudentID       string  `json:"studentId" validate:"required"`
	AreaOfferingID  string  `json:"areaOfferingId" validate:"required"`
	LevelOfferingID string  `json:"levelOfferingId" validate:"required"`
	AcademicTutorID *string `json:"academicTutorId"`
}
