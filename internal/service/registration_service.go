package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// RegistrationService creates tutors, the student, their enrollments and one
// covering payment order in a single transaction.
type RegistrationService struct {
	identities  *IdentityService
	enrollments *EnrollmentService
	orders      *PaymentOrderService
	tx          txRunner
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRegistrationService constructs the orchestrator.
func NewRegistrationService(identities *IdentityService, enrollments *EnrollmentService, orders *PaymentOrderService, tx txRunner, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		identities:  identities,
		enrollments: enrollments,
		orders:      orders,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// Register runs the whole registration. Any failure rolls everything back.
func (s *RegistrationService) Register(ctx context.Context, req dto.CompleteRegistrationRequest) (*dto.CompleteRegistrationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}
	seen := make(map[string]struct{}, len(req.AreaSelections))
	for _, selection := range req.AreaSelections {
		if _, dup := seen[selection.AreaOfferingID]; dup {
			return nil, conflict("duplicate area selection in request")
		}
		seen[selection.AreaOfferingID] = struct{}{}
	}

	var resp *dto.CompleteRegistrationResponse
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		legal, err := s.identities.ResolveLegalTutor(ctx, exec, req.LegalTutor)
		if err != nil {
			return err
		}
		student, err := s.identities.ResolveStudent(ctx, exec, req.Student, legal.ID)
		if err != nil {
			return err
		}
		academic, err := s.identities.ResolveAcademicTutor(ctx, exec, req.AcademicTutor)
		if err != nil {
			return err
		}
		var academicID *string
		if academic != nil {
			academicID = &academic.ID
		}

		enrollments := make([]models.Enrollment, 0, len(req.AreaSelections))
		ids := make([]string, 0, len(req.AreaSelections))
		for _, selection := range req.AreaSelections {
			enrollment, err := s.enrollments.EnrollTx(ctx, exec, dto.EnrollRequest{
				StudentID:       student.ID,
				AreaOfferingID:  selection.AreaOfferingID,
				LevelOfferingID: selection.LevelOfferingID,
				AcademicTutorID: academicID,
			})
			if err != nil {
				return err
			}
			enrollments = append(enrollments, *enrollment)
			ids = append(ids, enrollment.ID)
		}

		order, err := s.orders.OpenTx(ctx, exec, models.IndividualOrigin(ids[0]), ids, req.DueDate)
		if err != nil {
			return err
		}
		resp = &dto.CompleteRegistrationResponse{
			Student:      *student,
			Enrollments:  enrollments,
			PaymentOrder: *order,
			TotalCost:    order.Total,
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "failed to complete registration")
	}
	s.logger.Info("registration completed",
		zap.String("student_id", resp.Student.ID),
		zap.Int("enrollments", len(resp.Enrollments)),
		zap.String("order_code", resp.PaymentOrder.Code),
	)
	return resp, nil
}
