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
	msgDuplicateInList     = "duplicate student and area in list"
	msgListedElsewhere     = "student already listed for area in another list"
	msgEnrolledElsewhere   = "already enrolled via another source"
	msgListHasLiveOrder    = "enrollment list has a live payment order"
	msgAreaOutsideListConv = "area offering does not belong to the list convocatoria"
)

type enrollmentListStore interface {
	CreateList(ctx context.Context, exec sqlx.ExtContext, list *models.EnrollmentList) error
	GetList(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.EnrollmentList, error)
	CreateDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.ListDetail) error
	ListDetails(ctx context.Context, exec sqlx.ExtContext, listID string) ([]models.ListDetail, error)
	GetDetail(ctx context.Context, exec sqlx.ExtContext, listID, detailID string) (*models.ListDetail, error)
	DeleteDetail(ctx context.Context, exec sqlx.ExtContext, detailID string) error
	ExistsForStudentArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (bool, error)
}

type listEnrollmentEngine interface {
	ValidateOffering(ctx context.Context, exec sqlx.ExtContext, areaOfferingID, levelOfferingID string) (*models.Offering, error)
	CheckEligibility(ctx context.Context, exec sqlx.ExtContext, studentID string, offering *models.Offering) (*models.Student, error)
	Materialize(ctx context.Context, exec sqlx.ExtContext, detail models.ListDetail) (*models.Enrollment, error)
}

type listEnrollmentReader interface {
	FindByStudentAndArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (*models.Enrollment, error)
	CountCommitments(ctx context.Context, exec sqlx.ExtContext, studentID, convocatoriaID string) (int, error)
}

type convocatoriaLookup interface {
	GetConvocatoria(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Convocatoria, error)
}

type liveOrderGuard interface {
	HasLiveOrder(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, now time.Time) (bool, error)
}

// EnrollmentListService manages bulk enrollment lists submitted by educational units.
type EnrollmentListService struct {
	store       enrollmentListStore
	engine      listEnrollmentEngine
	enrollments listEnrollmentReader
	catalog     convocatoriaLookup
	orders      liveOrderGuard
	tx          txRunner
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentListService constructs the list processor.
func NewEnrollmentListService(store enrollmentListStore, engine listEnrollmentEngine, enrollments listEnrollmentReader, catalog convocatoriaLookup, orders liveOrderGuard, tx txRunner, validate *validator.Validate, logger *zap.Logger) *EnrollmentListService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentListService{
		store:       store,
		engine:      engine,
		enrollments: enrollments,
		catalog:     catalog,
		orders:      orders,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// listBatch holds the (student, area) pairs accepted earlier in the same
// request. Earlier entries are already written in the transaction, so the cap
// count sees them.
type listBatch map[string]struct{}

// CreateList stores a list header with its entries in one transaction.
func (s *EnrollmentListService) CreateList(ctx context.Context, req dto.CreateListRequest) (*models.EnrollmentListDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment list payload")
	}
	var result *models.EnrollmentListDetail
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		if _, err := s.catalog.GetConvocatoria(ctx, exec, req.ConvocatoriaID); err != nil {
			return lookupError(err, "convocatoria not found", "failed to load convocatoria")
		}
		list := &models.EnrollmentList{
			EducationalUnitID: strings.TrimSpace(req.EducationalUnitID),
			ConvocatoriaID:    req.ConvocatoriaID,
		}
		if err := s.store.CreateList(ctx, exec, list); err != nil {
			if errors.Is(err, repository.ErrReferenceMissing) {
				return notFound("educational unit not found")
			}
			return appErrors.Internal(err, "failed to create enrollment list")
		}
		batch := listBatch{}
		details := make([]models.ListDetail, 0, len(req.Details))
		for _, item := range req.Details {
			detail, err := s.addDetail(ctx, exec, list, item, batch)
			if err != nil {
				return err
			}
			details = append(details, *detail)
		}
		result = &models.EnrollmentListDetail{EnrollmentList: *list, Details: details}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "failed to create enrollment list")
	}
	s.logger.Info("enrollment list created",
		zap.String("list_id", result.ID),
		zap.String("educational_unit_id", result.EducationalUnitID),
		zap.Int("details", len(result.Details)),
	)
	return result, nil
}

// AddDetail appends an entry to a list whose amount is not frozen by an order.
func (s *EnrollmentListService) AddDetail(ctx context.Context, listID string, req dto.ListDetailRequest) (*models.ListDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid list detail payload")
	}
	var detail *models.ListDetail
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		list, err := s.lockEditable(ctx, exec, listID)
		if err != nil {
			return err
		}
		detail, err = s.addDetail(ctx, exec, list, req, listBatch{})
		return err
	})
	if err != nil {
		return nil, passthrough(err, "failed to add list detail")
	}
	return detail, nil
}

// RemoveDetail deletes an entry that has not been settled.
func (s *EnrollmentListService) RemoveDetail(ctx context.Context, listID, detailID string) error {
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		if _, err := s.lockEditable(ctx, exec, listID); err != nil {
			return err
		}
		detail, err := s.store.GetDetail(ctx, exec, listID, detailID)
		if err != nil {
			return lookupError(err, "list detail not found", "failed to load list detail")
		}
		_, err = s.enrollments.FindByStudentAndArea(ctx, exec, detail.StudentID, detail.AreaOfferingID)
		switch {
		case err == nil:
			return conflict("list detail is already settled as an enrollment")
		case !errors.Is(err, sql.ErrNoRows):
			return appErrors.Internal(err, "failed to check existing enrollment")
		}
		if err := s.store.DeleteDetail(ctx, exec, detail.ID); err != nil {
			return appErrors.Internal(err, "failed to delete list detail")
		}
		return nil
	})
	if err != nil {
		return passthrough(err, "failed to remove list detail")
	}
	return nil
}

// lockEditable locks the list header and rejects changes once an order holds its amount.
func (s *EnrollmentListService) lockEditable(ctx context.Context, exec sqlx.ExtContext, listID string) (*models.EnrollmentList, error) {
	list, err := s.store.GetList(ctx, exec, listID, true)
	if err != nil {
		return nil, lookupError(err, "enrollment list not found", "failed to load enrollment list")
	}
	live, err := s.orders.HasLiveOrder(ctx, exec, models.ListOrigin(list.ID), s.now().UTC())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check list payment orders")
	}
	if live {
		return nil, conflict(msgListHasLiveOrder)
	}
	return list, nil
}

func (s *EnrollmentListService) addDetail(ctx context.Context, exec sqlx.ExtContext, list *models.EnrollmentList, req dto.ListDetailRequest, batch listBatch) (*models.ListDetail, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	offering, err := s.engine.ValidateOffering(ctx, exec, req.AreaOfferingID, req.LevelOfferingID)
	if err != nil {
		return nil, err
	}
	if offering.Area.ConvocatoriaID != list.ConvocatoriaID {
		return nil, conflict(msgAreaOutsideListConv)
	}
	if !offering.Convocatoria.IsOpen(s.now()) {
		return nil, conflict(msgConvocatoriaClosed)
	}
	if _, err := s.engine.CheckEligibility(ctx, exec, req.StudentID, offering); err != nil {
		return nil, err
	}

	pair := req.StudentID + "|" + offering.Area.ID
	if _, dup := batch[pair]; dup {
		return nil, conflict(msgDuplicateInList)
	}
	listed, err := s.store.ExistsForStudentArea(ctx, exec, req.StudentID, offering.Area.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment lists")
	}
	if listed {
		return nil, conflict(msgListedElsewhere)
	}
	_, err = s.enrollments.FindByStudentAndArea(ctx, exec, req.StudentID, offering.Area.ID)
	switch {
	case err == nil:
		return nil, conflict(msgEnrolledElsewhere)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check existing enrollment")
	}

	if limit := offering.Convocatoria.MaxAreasPerStudent; limit > 0 {
		count, err := s.enrollments.CountCommitments(ctx, exec, req.StudentID, offering.Convocatoria.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to count student areas")
		}
		if count+1 > limit {
			return nil, conflict(msgAreaCapReached)
		}
	}

	detail := &models.ListDetail{
		ListID:          list.ID,
		StudentID:       req.StudentID,
		AreaOfferingID:  offering.Area.ID,
		LevelOfferingID: offering.Level.ID,
		AcademicTutorID: trimmedPtr(req.AcademicTutorID),
	}
	if err := s.store.CreateDetail(ctx, exec, detail); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			if repository.ConstraintName(err) == repository.ConstraintListDetailWithinList {
				return nil, conflict(msgDuplicateInList)
			}
			return nil, conflict(msgListedElsewhere)
		case errors.Is(err, repository.ErrReferenceMissing):
			return nil, notFound("academic tutor not found")
		default:
			return nil, appErrors.Internal(err, "failed to create list detail")
		}
	}
	batch[pair] = struct{}{}
	return detail, nil
}

// Materialize creates or promotes a VERIFIED enrollment for every entry of the list.
func (s *EnrollmentListService) Materialize(ctx context.Context, exec sqlx.ExtContext, listID string) (int, error) {
	details, err := s.store.ListDetails(ctx, exec, listID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to load list details")
	}
	for _, detail := range details {
		if _, err := s.engine.Materialize(ctx, exec, detail); err != nil {
			return 0, err
		}
	}
	return len(details), nil
}

// Get returns the list header with its entries.
func (s *EnrollmentListService) Get(ctx context.Context, listID string) (*models.EnrollmentListDetail, error) {
	list, err := s.store.GetList(ctx, nil, listID, false)
	if err != nil {
		return nil, lookupError(err, "enrollment list not found", "failed to load enrollment list")
	}
	details, err := s.store.ListDetails(ctx, nil, list.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load list details")
	}
	if details == nil {
		details = []models.ListDetail{}
	}
	return &models.EnrollmentListDetail{EnrollmentList: *list, Details: details}, nil
}
