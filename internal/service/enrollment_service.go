package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/internal/repository"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
)

const (
	msgAlreadyEnrolled        = "student already enrolled in area"
	msgAlreadyEnrolledViaList = "student already enrolled in area via an enrollment list"
	msgAreaCapReached         = "maximum areas per student reached for convocatoria"
	msgConvocatoriaClosed     = "convocatoria is not open"
	msgGradeOutOfRange        = "student grade is outside the level range"
)

type enrollmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	GetDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	FindByStudentAndArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (*models.Enrollment, error)
	CountCommitments(ctx context.Context, exec sqlx.ExtContext, studentID, convocatoriaID string) (int, error)
	UpdateState(ctx context.Context, exec sqlx.ExtContext, ids []string, from []models.EnrollmentState, to models.EnrollmentState) (int64, error)
}

type offeringCatalog interface {
	GetAreaOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AreaOffering, error)
	GetLevelOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LevelOffering, error)
	GetConvocatoria(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Convocatoria, error)
	GetGrade(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Grade, error)
}

type studentLookup interface {
	GetStudent(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
}

type listedPairLookup interface {
	ExistsForStudentArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (bool, error)
}

// EnrollmentService is the only writer of enrollments. It validates offerings,
// enforces per-student uniqueness and the area cap, and drives state changes.
type EnrollmentService struct {
	store     enrollmentStore
	catalog   offeringCatalog
	students  studentLookup
	listed    listedPairLookup
	tx        txRunner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs the engine.
func NewEnrollmentService(store enrollmentStore, catalog offeringCatalog, students studentLookup, listed listedPairLookup, tx txRunner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		store:     store,
		catalog:   catalog,
		students:  students,
		listed:    listed,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateOffering loads an (area, level) pair and checks the level belongs to the area.
func (s *EnrollmentService) ValidateOffering(ctx context.Context, exec sqlx.ExtContext, areaOfferingID, levelOfferingID string) (*models.Offering, error) {
	area, err := s.catalog.GetAreaOffering(ctx, exec, areaOfferingID)
	if err != nil {
		return nil, lookupError(err, "area offering not found", "failed to load area offering")
	}
	level, err := s.catalog.GetLevelOffering(ctx, exec, levelOfferingID)
	if err != nil {
		return nil, lookupError(err, "level offering not found", "failed to load level offering")
	}
	if level.AreaOfferingID != area.ID {
		return nil, conflict("level offering does not belong to area offering")
	}
	conv, err := s.catalog.GetConvocatoria(ctx, exec, area.ConvocatoriaID)
	if err != nil {
		return nil, lookupError(err, "convocatoria not found", "failed to load convocatoria")
	}
	return &models.Offering{Area: *area, Level: *level, Convocatoria: *conv}, nil
}

// CheckEligibility verifies the student exists and the grade fits the level range.
func (s *EnrollmentService) CheckEligibility(ctx context.Context, exec sqlx.ExtContext, studentID string, offering *models.Offering) (*models.Student, error) {
	student, err := s.students.GetStudent(ctx, exec, studentID)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	grade, err := s.catalog.GetGrade(ctx, exec, student.GradeID)
	if err != nil {
		return nil, lookupError(err, "grade not found", "failed to load grade")
	}
	if !offering.Level.AcceptsGrade(grade.Ordinal) {
		return nil, invalid(msgGradeOutOfRange)
	}
	return student, nil
}

// Enroll runs EnrollTx in its own transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		var err error
		enrollment, err = s.EnrollTx(ctx, exec, req)
		return err
	})
	if err != nil {
		return nil, passthrough(err, "failed to enroll student")
	}
	return enrollment, nil
}

// EnrollTx creates a PENDING enrollment inside the caller's transaction.
func (s *EnrollmentService) EnrollTx(ctx context.Context, exec sqlx.ExtContext, req dto.EnrollRequest) (*models.Enrollment, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	offering, err := s.ValidateOffering(ctx, exec, req.AreaOfferingID, req.LevelOfferingID)
	if err != nil {
		return nil, err
	}
	if !offering.Convocatoria.IsOpen(s.now()) {
		return nil, conflict(msgConvocatoriaClosed)
	}
	if _, err := s.CheckEligibility(ctx, exec, req.StudentID, offering); err != nil {
		return nil, err
	}

	_, err = s.store.FindByStudentAndArea(ctx, exec, req.StudentID, req.AreaOfferingID)
	switch {
	case err == nil:
		return nil, conflict(msgAlreadyEnrolled)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check existing enrollment")
	}

	listed, err := s.listed.ExistsForStudentArea(ctx, exec, req.StudentID, req.AreaOfferingID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment lists")
	}
	if listed {
		return nil, conflict(msgAlreadyEnrolledViaList)
	}

	if err := s.checkCap(ctx, exec, req.StudentID, offering.Convocatoria, 1); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:       req.StudentID,
		AreaOfferingID:  offering.Area.ID,
		LevelOfferingID: offering.Level.ID,
		AcademicTutorID: trimmedPtr(req.AcademicTutorID),
		State:           models.EnrollmentStatePending,
	}
	if err := s.create(ctx, exec, enrollment); err != nil {
		return nil, err
	}
	s.metrics.RecordEnrollmentCreated("direct")
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("area_offering_id", enrollment.AreaOfferingID),
	)
	return enrollment, nil
}

// checkCap fails when adding extra areas would exceed the convocatoria limit.
func (s *EnrollmentService) checkCap(ctx context.Context, exec sqlx.ExtContext, studentID string, conv models.Convocatoria, extra int) error {
	if conv.MaxAreasPerStudent <= 0 {
		return nil
	}
	count, err := s.store.CountCommitments(ctx, exec, studentID, conv.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to count student areas")
	}
	if count+extra > conv.MaxAreasPerStudent {
		return conflict(msgAreaCapReached)
	}
	return nil
}

func (s *EnrollmentService) create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	err := s.store.Create(ctx, exec, enrollment)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicate):
		return conflict(msgAlreadyEnrolled)
	case errors.Is(err, repository.ErrReferenceMissing):
		return notFound("academic tutor not found")
	default:
		return appErrors.Internal(err, "failed to create enrollment")
	}
}

// Promote moves enrollments forward to state. Enrollments already at or past
// state are left untouched.
func (s *EnrollmentService) Promote(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string, state models.EnrollmentState) (int64, error) {
	if !state.Valid() {
		return 0, invalid("unknown enrollment state")
	}
	var from []models.EnrollmentState
	for _, candidate := range []models.EnrollmentState{models.EnrollmentStatePending, models.EnrollmentStatePaid} {
		if candidate.Precedes(state) {
			from = append(from, candidate)
		}
	}
	changed, err := s.store.UpdateState(ctx, exec, enrollmentIDs, from, state)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to update enrollment state")
	}
	return changed, nil
}

// Demote reverts PAID enrollments to PENDING after a rejected or withdrawn receipt.
func (s *EnrollmentService) Demote(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) (int64, error) {
	changed, err := s.store.UpdateState(ctx, exec, enrollmentIDs,
		[]models.EnrollmentState{models.EnrollmentStatePaid}, models.EnrollmentStatePending)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to revert enrollment state")
	}
	return changed, nil
}

// Materialize turns a verified list entry into a VERIFIED enrollment, promoting
// an existing one for the same (student, area) or inserting it.
func (s *EnrollmentService) Materialize(ctx context.Context, exec sqlx.ExtContext, detail models.ListDetail) (*models.Enrollment, error) {
	existing, err := s.store.FindByStudentAndArea(ctx, exec, detail.StudentID, detail.AreaOfferingID)
	switch {
	case err == nil:
		if existing.State != models.EnrollmentStateVerified {
			if _, err := s.Promote(ctx, exec, []string{existing.ID}, models.EnrollmentStateVerified); err != nil {
				return nil, err
			}
			existing.State = models.EnrollmentStateVerified
		}
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check existing enrollment")
	}

	enrollment := &models.Enrollment{
		StudentID:       detail.StudentID,
		AreaOfferingID:  detail.AreaOfferingID,
		LevelOfferingID: detail.LevelOfferingID,
		AcademicTutorID: detail.AcademicTutorID,
		State:           models.EnrollmentStateVerified,
	}
	if err := s.create(ctx, exec, enrollment); err != nil {
		return nil, err
	}
	s.metrics.RecordEnrollmentCreated("list")
	return enrollment, nil
}

// Get returns an enrollment with catalog names.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.store.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment not found", "failed to load enrollment")
	}
	return detail, nil
}

// ListByStudent returns the enrollments of a student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.students.GetStudent(ctx, nil, studentID); err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	items, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}
