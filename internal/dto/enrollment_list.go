package dto

// ListDetailRequest is one entry of an enrollment list.
type ListDetailRequest struct {
	StudentID       string  `json:"studentId" validate:"required"`
	AreaOfferingID  string  `json:"areaOfferingId" validate:"required"`
	LevelOfferingID string  `json:"levelOfferingId" validate:"required"`
	AcademicTutorID *string `json:"academicTutorId"`
}

// CreateListRequest creates a list header and its entries atomically.
type CreateListRequest struct {
	EducationalUnitID string              `json:"educationalUnitId" validate:"required"`
	ConvocatoriaID    string              `json:"convocatoriaId" validate:"required"`
	Details           []ListDetailRequest `json:"details" validate:"required,min=1,dive"`
}
