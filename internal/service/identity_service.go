package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/internal/repository"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
)

type identityStore interface {
	UpsertStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	UpsertTutor(ctx context.Context, exec sqlx.ExtContext, kind models.TutorKind, tutor *models.Tutor) error
}

// IdentityService finds or creates students and tutors by national ID.
type IdentityService struct {
	store     identityStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(store identityStore, validate *validator.Validate, logger *zap.Logger) *IdentityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{store: store, validator: validate, logger: logger}
}

// ResolveLegalTutor upserts the legal tutor.
func (s *IdentityService) ResolveLegalTutor(ctx context.Context, exec sqlx.ExtContext, payload dto.TutorPayload) (*models.Tutor, error) {
	return s.resolveTutor(ctx, exec, models.TutorKindLegal, payload)
}

// ResolveAcademicTutor upserts the academic tutor. A nil payload means the
// registration has none.
func (s *IdentityService) ResolveAcademicTutor(ctx context.Context, exec sqlx.ExtContext, payload *dto.TutorPayload) (*models.Tutor, error) {
	if payload == nil {
		return nil, nil
	}
	return s.resolveTutor(ctx, exec, models.TutorKindAcademic, *payload)
}

func (s *IdentityService) resolveTutor(ctx context.Context, exec sqlx.ExtContext, kind models.TutorKind, payload dto.TutorPayload) (*models.Tutor, error) {
	payload.NationalID = strings.TrimSpace(payload.NationalID)
	payload.FirstNames = strings.TrimSpace(payload.FirstNames)
	payload.LastNames = strings.TrimSpace(payload.LastNames)
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid "+string(kind)+" tutor payload")
	}
	tutor := &models.Tutor{
		NationalID: payload.NationalID,
		FirstNames: payload.FirstNames,
		LastNames:  payload.LastNames,
		Email:      trimmedPtr(payload.Email),
		Phone:      trimmedPtr(payload.Phone),
	}
	if err := s.store.UpsertTutor(ctx, exec, kind, tutor); err != nil {
		return nil, appErrors.Internal(err, "failed to store "+string(kind)+" tutor")
	}
	return tutor, nil
}

// ResolveStudent upserts the student linked to the legal tutor.
func (s *IdentityService) ResolveStudent(ctx context.Context, exec sqlx.ExtContext, payload dto.StudentPayload, legalTutorID string) (*models.Student, error) {
	payload.NationalID = strings.TrimSpace(payload.NationalID)
	payload.FirstNames = strings.TrimSpace(payload.FirstNames)
	payload.LastNames = strings.TrimSpace(payload.LastNames)
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if legalTutorID == "" {
		return nil, invalid("student requires a legal tutor")
	}
	student := &models.Student{
		NationalID:        payload.NationalID,
		FirstNames:        payload.FirstNames,
		LastNames:         payload.LastNames,
		BirthDate:         payload.BirthDate,
		Email:             trimmedPtr(payload.Email),
		EducationalUnitID: payload.EducationalUnitID,
		GradeID:           payload.GradeID,
		LegalTutorID:      legalTutorID,
	}
	if err := s.store.UpsertStudent(ctx, exec, student); err != nil {
		if errors.Is(err, repository.ErrReferenceMissing) {
			return nil, notFound("educational unit or grade not found")
		}
		return nil, appErrors.Internal(err, "failed to store student")
	}
	s.logger.Debug("student resolved", zap.String("student_id", student.ID))
	return student, nil
}
