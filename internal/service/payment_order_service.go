package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/internal/repository"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
)

const (
	defaultOrderTTL     = 72 * time.Hour
	defaultCodePrefix   = "OP"
	orderCodeAttempts   = 5
	orderCodeSuffixSize = 6

	msgPendingOrderExists = "a pending payment order already exists for this origin"
	msgEnrollmentBilled   = "enrollment is already covered by another payment order"
	msgEnrollmentVerified = "enrollment is already verified"
)

type paymentOrderStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, order *models.PaymentOrder) error
	AddCoverage(ctx context.Context, exec sqlx.ExtContext, orderID string, enrollmentIDs []string) error
	CoveredEnrollmentIDs(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]string, error)
	CoverageForAnchor(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) ([]string, error)
	OrdersCovering(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) ([]models.PaymentOrder, error)
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentOrder, error)
	ExpireStale(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, now time.Time) (int64, error)
	FindPending(ctx context.Context, exec sqlx.ExtContext, origin models.Origin) (*models.PaymentOrder, error)
	CodeExists(ctx context.Context, exec sqlx.ExtContext, code string) (bool, error)
	SumEnrollmentCosts(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) (decimal.Decimal, error)
	SumListCosts(ctx context.Context, exec sqlx.ExtContext, listID string) (decimal.Decimal, error)
}

type enrollmentReader interface {
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error)
}

type listReader interface {
	GetList(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.EnrollmentList, error)
	ListDetails(ctx context.Context, exec sqlx.ExtContext, listID string) ([]models.ListDetail, error)
}

type receiptLister interface {
	ListByOrder(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]models.PaymentReceipt, error)
}

// PaymentOrderConfig tunes order issuance.
type PaymentOrderConfig struct {
	TTL        time.Duration
	CodePrefix string
}

// PaymentOrderService quotes, opens and reads payment orders.
type PaymentOrderService struct {
	store       paymentOrderStore
	enrollments enrollmentReader
	lists       listReader
	receipts    receiptLister
	tx          txRunner
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         PaymentOrderConfig
	now         func() time.Time
}

// NewPaymentOrderService constructs the ledger.
func NewPaymentOrderService(store paymentOrderStore, enrollments enrollmentReader, lists listReader, receipts receiptLister, tx txRunner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PaymentOrderConfig) *PaymentOrderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultOrderTTL
	}
	cfg.CodePrefix = strings.ToUpper(strings.TrimSpace(cfg.CodePrefix))
	if cfg.CodePrefix == "" {
		cfg.CodePrefix = defaultCodePrefix
	}
	return &PaymentOrderService{
		store:       store,
		enrollments: enrollments,
		lists:       lists,
		receipts:    receipts,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Quote returns the amount an order for origin would carry without writing anything.
func (s *PaymentOrderService) Quote(ctx context.Context, origin models.Origin) (*dto.QuoteResponse, error) {
	if err := origin.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	covered, err := s.coverage(ctx, nil, origin)
	if err != nil {
		return nil, err
	}
	total, err := s.quote(ctx, nil, origin, covered)
	if err != nil {
		return nil, err
	}
	return &dto.QuoteResponse{Origin: origin, Total: total}, nil
}

// coverage resolves the enrollments an INDIVIDUAL origin pays for: the coverage
// rows anchored at it, or the anchor alone.
func (s *PaymentOrderService) coverage(ctx context.Context, exec sqlx.ExtContext, origin models.Origin) ([]string, error) {
	switch origin.Type {
	case models.OriginIndividual:
		if _, err := s.enrollments.GetByID(ctx, exec, origin.ID); err != nil {
			return nil, lookupError(err, "enrollment not found", "failed to load enrollment")
		}
		ids, err := s.store.CoverageForAnchor(ctx, exec, origin.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load order coverage")
		}
		if len(ids) == 0 {
			ids = []string{origin.ID}
		}
		return ids, nil
	default:
		if _, err := s.lists.GetList(ctx, exec, origin.ID, false); err != nil {
			return nil, lookupError(err, "enrollment list not found", "failed to load enrollment list")
		}
		return nil, nil
	}
}

func (s *PaymentOrderService) quote(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, covered []string) (decimal.Decimal, error) {
	var (
		total decimal.Decimal
		err   error
	)
	if origin.Type == models.OriginList {
		total, err = s.store.SumListCosts(ctx, exec, origin.ID)
	} else {
		total, err = s.store.SumEnrollmentCosts(ctx, exec, covered)
	}
	if err != nil {
		return decimal.Zero, appErrors.Internal(err, "failed to quote payment order")
	}
	return total, nil
}

// Open issues a payment order for the origin in its own transaction.
func (s *PaymentOrderService) Open(ctx context.Context, req dto.OpenOrderRequest) (*models.PaymentOrder, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment order payload")
	}
	origin, err := models.ParseOrigin(req.OriginType, strings.TrimSpace(req.OriginID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	var order *models.PaymentOrder
	err = s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		if origin.Type == models.OriginList {
			if _, err := s.lists.GetList(ctx, exec, origin.ID, true); err != nil {
				return lookupError(err, "enrollment list not found", "failed to load enrollment list")
			}
		}
		covered, err := s.coverage(ctx, exec, origin)
		if err != nil {
			return err
		}
		order, err = s.OpenTx(ctx, exec, origin, covered, req.DueDate)
		return err
	})
	if err != nil {
		return nil, passthrough(err, "failed to open payment order")
	}
	return order, nil
}

// OpenTx issues a payment order inside the caller's transaction. covered lists
// the enrollments of an INDIVIDUAL origin; it is ignored for lists.
func (s *PaymentOrderService) OpenTx(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, covered []string, dueDate *time.Time) (*models.PaymentOrder, error) {
	now := s.now().UTC()
	due := now.Add(s.cfg.TTL)
	if dueDate != nil {
		if !dueDate.After(now) {
			return nil, invalid("due date must be in the future")
		}
		due = dueDate.UTC()
	}

	expired, err := s.store.ExpireStale(ctx, exec, origin, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to expire stale payment orders")
	}
	s.metrics.RecordOrdersExpired(expired)

	if _, err := s.store.FindPending(ctx, exec, origin); err == nil {
		return nil, conflict(msgPendingOrderExists)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check pending payment orders")
	}

	switch origin.Type {
	case models.OriginIndividual:
		if len(covered) == 0 {
			covered = []string{origin.ID}
		}
		if err := s.ensureUnbilled(ctx, exec, covered, now); err != nil {
			return nil, err
		}
	case models.OriginList:
		details, err := s.lists.ListDetails(ctx, exec, origin.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load enrollment list details")
		}
		if len(details) == 0 {
			return nil, invalid("enrollment list has no details to pay")
		}
	}
	total, err := s.quote(ctx, exec, origin, covered)
	if err != nil {
		return nil, err
	}

	code, err := s.mintCode(ctx, exec, now)
	if err != nil {
		return nil, err
	}
	enrollmentID, listID := origin.Columns()
	order := &models.PaymentOrder{
		Code:         code,
		OriginType:   origin.Type,
		EnrollmentID: enrollmentID,
		ListID:       listID,
		Total:        total,
		IssuedAt:     now,
		DueDate:      due,
		State:        models.OrderStatePending,
	}
	if err := s.store.Create(ctx, exec, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if repository.ConstraintName(err) == repository.ConstraintOrderCode {
				return nil, conflict("payment order code collision, retry")
			}
			return nil, conflict(msgPendingOrderExists)
		}
		return nil, appErrors.Internal(err, "failed to create payment order")
	}
	if origin.Type == models.OriginIndividual {
		if err := s.store.AddCoverage(ctx, exec, order.ID, covered); err != nil {
			return nil, appErrors.Internal(err, "failed to record order coverage")
		}
	}

	s.metrics.RecordOrderOpened(string(origin.Type))
	s.logger.Info("payment order opened",
		zap.String("order_id", order.ID),
		zap.String("code", order.Code),
		zap.String("origin_type", string(origin.Type)),
		zap.String("origin_id", origin.ID),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return order, nil
}

// ensureUnbilled locks the covered enrollments and rejects any that is already
// verified or still billed by a live order, anchored elsewhere or not.
func (s *PaymentOrderService) ensureUnbilled(ctx context.Context, exec sqlx.ExtContext, covered []string, now time.Time) error {
	enrollments, err := s.enrollments.ListByIDs(ctx, exec, covered)
	if err != nil {
		return appErrors.Internal(err, "failed to load covered enrollments")
	}
	if len(enrollments) != len(covered) {
		return notFound("enrollment not found")
	}
	for _, enrollment := range enrollments {
		if enrollment.State == models.EnrollmentStateVerified {
			return conflict(msgEnrollmentVerified)
		}
	}
	orders, err := s.store.OrdersCovering(ctx, exec, covered)
	if err != nil {
		return appErrors.Internal(err, "failed to check order coverage")
	}
	for _, order := range orders {
		if order.Live(now) {
			return conflict(msgEnrollmentBilled)
		}
	}
	return nil
}

// mintCode produces PREFIX-YYYYMMDD-XXXXXX, re-rolling on collision.
func (s *PaymentOrderService) mintCode(ctx context.Context, exec sqlx.ExtContext, now time.Time) (string, error) {
	for attempt := 0; attempt < orderCodeAttempts; attempt++ {
		suffix, err := randomCodeSuffix()
		if err != nil {
			return "", appErrors.Internal(err, "failed to generate payment order code")
		}
		code := fmt.Sprintf("%s-%s-%s", s.cfg.CodePrefix, now.Format("20060102"), suffix)
		taken, err := s.store.CodeExists(ctx, exec, code)
		if err != nil {
			return "", appErrors.Internal(err, "failed to check payment order code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", conflict("could not allocate a unique payment order code")
}

func randomCodeSuffix() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.EncodeToString(buf)[:orderCodeSuffixSize], nil
}

// Get returns the order with its effective state, coverage and receipts.
func (s *PaymentOrderService) Get(ctx context.Context, id string) (*models.PaymentOrderDetail, error) {
	order, err := s.store.GetByID(ctx, nil, id)
	if err != nil {
		return nil, lookupError(err, "payment order not found", "failed to load payment order")
	}
	order.State = order.EffectiveState(s.now())

	detail := &models.PaymentOrderDetail{PaymentOrder: *order}
	if order.OriginType == models.OriginIndividual {
		ids, err := s.store.CoveredEnrollmentIDs(ctx, nil, order.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load order coverage")
		}
		detail.EnrollmentIDs = ids
	}
	receipts, err := s.receipts.ListByOrder(ctx, nil, order.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load payment receipts")
	}
	if receipts == nil {
		receipts = []models.PaymentReceipt{}
	}
	detail.Receipts = receipts
	return detail, nil
}
