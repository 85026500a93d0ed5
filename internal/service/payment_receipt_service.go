package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
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
	"github.com/noah-isme/olimpiada-registration-api/pkg/jobs"
	"github.com/noah-isme/olimpiada-registration-api/pkg/storage"
)

// JobTypeDocumentCleanup removes a stored receipt document left without a receipt row.
const JobTypeDocumentCleanup = "receipt.document.cleanup"

type receiptStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, receipt *models.PaymentReceipt) error
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentReceipt, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentReceipt, error)
	UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, state models.ReceiptState, reviewedAt time.Time) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type settlementOrderStore interface {
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentOrder, error)
	UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, state models.OrderState) error
	CoveredEnrollmentIDs(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]string, error)
	FindPending(ctx context.Context, exec sqlx.ExtContext, origin models.Origin) (*models.PaymentOrder, error)
}

type enrollmentPromoter interface {
	Promote(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string, state models.EnrollmentState) (int64, error)
	Demote(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) (int64, error)
}

type listMaterializer interface {
	Materialize(ctx context.Context, exec sqlx.ExtContext, listID string) (int, error)
}

type documentStorage interface {
	SaveStream(ref string, r io.Reader, maxBytes int64) (string, error)
	Open(ref string) (*os.File, error)
	Delete(ref string) error
}

type documentRemover interface {
	Delete(ref string) error
}

type documentSigner interface {
	Generate(receiptID, documentRef string) (string, time.Time, error)
	Parse(token string) (receiptID, documentRef string, err error)
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// ReceiptUpload carries the uploaded proof of payment.
type ReceiptUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// ReceiptDocument bundles an opened document for streaming.
type ReceiptDocument struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// PaymentReceiptConfig holds upload limits and link settings.
type PaymentReceiptConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// PaymentReceiptService accepts receipts and cascades review decisions to
// orders, enrollments and lists.
type PaymentReceiptService struct {
	receipts    receiptStore
	orders      settlementOrderStore
	enrollments enrollmentPromoter
	lists       listMaterializer
	storage     documentStorage
	signer      documentSigner
	cleanup     jobEnqueuer
	tx          txRunner
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         PaymentReceiptConfig
	mimeSet     map[string]struct{}
	now         func() time.Time
}

// NewPaymentReceiptService constructs the cascade with defaults.
func NewPaymentReceiptService(receipts receiptStore, orders settlementOrderStore, enrollments enrollmentPromoter, lists listMaterializer, documents documentStorage, signer documentSigner, cleanup jobEnqueuer, tx txRunner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PaymentReceiptConfig) *PaymentReceiptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &PaymentReceiptService{
		receipts:    receipts,
		orders:      orders,
		enrollments: enrollments,
		lists:       lists,
		storage:     documents,
		signer:      signer,
		cleanup:     cleanup,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		mimeSet:     mimeSet,
		now:         time.Now,
	}
}

// Submit stores the document and records a PENDING receipt, moving the order
// and its individual enrollments to PAID.
func (s *PaymentReceiptService) Submit(ctx context.Context, req dto.SubmitReceiptRequest, upload ReceiptUpload) (*dto.ReceiptResponse, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.ReceiptNumber = strings.TrimSpace(req.ReceiptNumber)
	req.PayerName = strings.TrimSpace(req.PayerName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid receipt payload")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, invalid("amount must be a decimal number")
	}
	if amount.IsNegative() {
		return nil, invalid("amount cannot be negative")
	}
	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		return nil, invalid("paymentDate must use YYYY-MM-DD")
	}
	if paymentDate.After(s.now().UTC()) {
		return nil, invalid("paymentDate cannot be in the future")
	}

	ref, err := s.storeDocument(req, upload)
	if err != nil {
		return nil, err
	}

	var (
		resp    *dto.ReceiptResponse
		expired bool
	)
	err = s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		now := s.now().UTC()
		order, err := s.orders.GetForUpdate(ctx, exec, req.OrderID)
		if err != nil {
			return lookupError(err, "payment order not found", "failed to load payment order")
		}
		switch {
		case order.State == models.OrderStatePaid || order.State == models.OrderStateVerified:
			return conflict("order already settled")
		case order.State == models.OrderStateExpired:
			expired = true
			return nil
		case order.PastDue(now):
			// Expiry is committed; the conflict is reported after the transaction.
			if err := s.orders.UpdateState(ctx, exec, order.ID, models.OrderStateExpired); err != nil {
				return appErrors.Internal(err, "failed to expire payment order")
			}
			s.metrics.RecordOrdersExpired(1)
			expired = true
			return nil
		}
		if amount.LessThan(order.Total) {
			return invalid(fmt.Sprintf("amount %s is less than the order total %s", amount.StringFixed(2), order.Total.StringFixed(2)))
		}

		receipt := &models.PaymentReceipt{
			OrderID:       order.ID,
			ReceiptNumber: req.ReceiptNumber,
			PayerName:     req.PayerName,
			PaymentDate:   paymentDate,
			Amount:        amount,
			DocumentRef:   ref,
			State:         models.ReceiptStatePending,
			CreatedAt:     now,
		}
		if err := s.receipts.Create(ctx, exec, receipt); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict("receipt number already registered for this order")
			}
			return appErrors.Internal(err, "failed to create payment receipt")
		}
		if err := s.orders.UpdateState(ctx, exec, order.ID, models.OrderStatePaid); err != nil {
			return appErrors.Internal(err, "failed to mark payment order paid")
		}
		order.State = models.OrderStatePaid
		if order.OriginType == models.OriginIndividual {
			covered, err := s.covered(ctx, exec, order)
			if err != nil {
				return err
			}
			if _, err := s.enrollments.Promote(ctx, exec, covered, models.EnrollmentStatePaid); err != nil {
				return err
			}
		}
		resp = &dto.ReceiptResponse{Receipt: *receipt, Order: *order}
		return nil
	})
	if err != nil {
		s.discardDocument(ctx, ref)
		return nil, passthrough(err, "failed to submit payment receipt")
	}
	if expired {
		s.discardDocument(ctx, ref)
		return nil, conflict("order expired")
	}

	s.metrics.RecordReceiptSubmitted()
	s.logger.Info("payment receipt submitted",
		zap.String("receipt_id", resp.Receipt.ID),
		zap.String("order_id", resp.Order.ID),
		zap.String("amount", resp.Receipt.Amount.StringFixed(2)),
	)
	return resp, nil
}

func (s *PaymentReceiptService) storeDocument(req dto.SubmitReceiptRequest, upload ReceiptUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", invalid("file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", invalid(fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := detectMime(upload)
	if err != nil {
		return "", err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return "", invalid("mime type not allowed")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to reset upload stream")
	}
	ref := documentRef(req.OrderID, req.ReceiptNumber, upload.Filename, mimeType, s.now())
	stored, err := s.storage.SaveStream(ref, upload.Content, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", invalid(fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
		}
		return "", appErrors.Internal(err, "failed to persist receipt document")
	}
	return stored, nil
}

// Verify applies a review decision to a PENDING receipt.
func (s *PaymentReceiptService) Verify(ctx context.Context, receiptID string, req dto.VerifyReceiptRequest) (*dto.ReceiptResponse, error) {
	req.Decision = strings.ToUpper(strings.TrimSpace(req.Decision))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	decision := models.ReceiptState(req.Decision)

	var resp *dto.ReceiptResponse
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		now := s.now().UTC()
		receipt, err := s.receipts.GetForUpdate(ctx, exec, receiptID)
		if err != nil {
			return lookupError(err, "payment receipt not found", "failed to load payment receipt")
		}
		if receipt.State != models.ReceiptStatePending {
			return conflict("receipt already reviewed")
		}
		order, err := s.orders.GetForUpdate(ctx, exec, receipt.OrderID)
		if err != nil {
			return lookupError(err, "payment order not found", "failed to load payment order")
		}
		if order.State != models.OrderStatePaid {
			return conflict("order is not awaiting verification")
		}

		if err := s.receipts.UpdateState(ctx, exec, receipt.ID, decision, now); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict("order already has a verified receipt")
			}
			return appErrors.Internal(err, "failed to update payment receipt")
		}
		receipt.State = decision
		receipt.ReviewedAt = &now

		if decision == models.ReceiptStateRejected {
			if err := s.revertOrder(ctx, exec, order, now); err != nil {
				return err
			}
			resp = &dto.ReceiptResponse{Receipt: *receipt, Order: *order}
			return nil
		}

		if err := s.orders.UpdateState(ctx, exec, order.ID, models.OrderStateVerified); err != nil {
			return appErrors.Internal(err, "failed to mark payment order verified")
		}
		order.State = models.OrderStateVerified
		origin := order.Origin()
		switch origin.Type {
		case models.OriginIndividual:
			covered, err := s.covered(ctx, exec, order)
			if err != nil {
				return err
			}
			if _, err := s.enrollments.Promote(ctx, exec, covered, models.EnrollmentStateVerified); err != nil {
				return err
			}
		case models.OriginList:
			count, err := s.lists.Materialize(ctx, exec, origin.ID)
			if err != nil {
				return err
			}
			s.logger.Info("enrollment list materialized", zap.String("list_id", origin.ID), zap.Int("enrollments", count))
		}
		resp = &dto.ReceiptResponse{Receipt: *receipt, Order: *order}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "failed to review payment receipt")
	}
	s.metrics.RecordReceiptReviewed(string(decision))
	s.logger.Info("payment receipt reviewed",
		zap.String("receipt_id", resp.Receipt.ID),
		zap.String("decision", string(decision)),
		zap.String("order_state", string(resp.Order.State)),
	)
	return resp, nil
}

// revertOrder undoes a submission: the order returns to PENDING, or EXPIRED
// when past due or when another pending order now holds the origin.
func (s *PaymentReceiptService) revertOrder(ctx context.Context, exec sqlx.ExtContext, order *models.PaymentOrder, now time.Time) error {
	next := models.OrderStatePending
	if order.PastDue(now) {
		next = models.OrderStateExpired
	} else {
		other, err := s.orders.FindPending(ctx, exec, order.Origin())
		switch {
		case err == nil && other.ID != order.ID:
			next = models.OrderStateExpired
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Internal(err, "failed to check pending payment orders")
		}
	}
	if err := s.orders.UpdateState(ctx, exec, order.ID, next); err != nil {
		return appErrors.Internal(err, "failed to revert payment order")
	}
	order.State = next
	if order.OriginType != models.OriginIndividual {
		return nil
	}
	covered, err := s.covered(ctx, exec, order)
	if err != nil {
		return err
	}
	_, err = s.enrollments.Demote(ctx, exec, covered)
	return err
}

// Delete removes a receipt that has not been verified. The document is
// removed after commit.
func (s *PaymentReceiptService) Delete(ctx context.Context, receiptID string) error {
	var ref string
	err := s.tx.Run(ctx, func(exec sqlx.ExtContext) error {
		receipt, err := s.receipts.GetForUpdate(ctx, exec, receiptID)
		if err != nil {
			return lookupError(err, "payment receipt not found", "failed to load payment receipt")
		}
		if receipt.State == models.ReceiptStateVerified {
			return conflict("verified receipts cannot be deleted")
		}
		if receipt.State == models.ReceiptStatePending {
			order, err := s.orders.GetForUpdate(ctx, exec, receipt.OrderID)
			if err != nil {
				return lookupError(err, "payment order not found", "failed to load payment order")
			}
			if order.State == models.OrderStatePaid {
				if err := s.revertOrder(ctx, exec, order, s.now().UTC()); err != nil {
					return err
				}
			}
		}
		if err := s.receipts.Delete(ctx, exec, receipt.ID); err != nil {
			return appErrors.Internal(err, "failed to delete payment receipt")
		}
		ref = receipt.DocumentRef
		return nil
	})
	if err != nil {
		return passthrough(err, "failed to delete payment receipt")
	}
	s.discardDocument(ctx, ref)
	s.logger.Info("payment receipt deleted", zap.String("receipt_id", receiptID))
	return nil
}

// DocumentURL returns a signed, expiring download link for the receipt document.
func (s *PaymentReceiptService) DocumentURL(ctx context.Context, receiptID string) (*dto.DocumentURLResponse, error) {
	receipt, err := s.receipts.GetByID(ctx, nil, receiptID)
	if err != nil {
		return nil, lookupError(err, "payment receipt not found", "failed to load payment receipt")
	}
	token, expiresAt, err := s.signer.Generate(receipt.ID, receipt.DocumentRef)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	link := fmt.Sprintf("%s/payment-receipts/%s/document?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), receipt.ID, url.QueryEscape(token))
	return &dto.DocumentURLResponse{URL: link, ExpiresAt: expiresAt}, nil
}

// OpenDocument validates the token and opens the stored document.
func (s *PaymentReceiptService) OpenDocument(ctx context.Context, receiptID, token string) (*ReceiptDocument, error) {
	tokenReceiptID, tokenRef, err := s.signer.Parse(token)
	if err != nil || tokenReceiptID != receiptID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	receipt, err := s.receipts.GetByID(ctx, nil, receiptID)
	if err != nil {
		return nil, lookupError(err, "payment receipt not found", "failed to load payment receipt")
	}
	if receipt.DocumentRef != tokenRef {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(receipt.DocumentRef)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("receipt document not found")
		}
		return nil, appErrors.Internal(err, "failed to open receipt document")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Internal(err, "failed to stat receipt document")
	}
	name := filepath.Base(receipt.DocumentRef)
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &ReceiptDocument{File: file, Filename: name, MimeType: mimeType, SizeBytes: info.Size()}, nil
}

func (s *PaymentReceiptService) covered(ctx context.Context, exec sqlx.ExtContext, order *models.PaymentOrder) ([]string, error) {
	ids, err := s.orders.CoveredEnrollmentIDs(ctx, exec, order.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load order coverage")
	}
	if len(ids) == 0 && order.EnrollmentID != nil {
		ids = []string{*order.EnrollmentID}
	}
	return ids, nil
}

// discardDocument hands an orphaned document to the cleanup queue and falls
// back to a direct delete when the queue is unavailable.
func (s *PaymentReceiptService) discardDocument(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if s.cleanup != nil {
		err := s.cleanup.Enqueue(ctx, jobs.Job{
			Type:    JobTypeDocumentCleanup,
			Payload: map[string]string{"ref": ref},
		})
		if err == nil {
			return
		}
		s.logger.Warn("cleanup enqueue failed", zap.String("ref", ref), zap.Error(err))
	}
	if err := s.storage.Delete(ref); err != nil {
		s.metrics.RecordDocumentCleanup("failed")
		s.logger.Warn("receipt document cleanup failed", zap.String("ref", ref), zap.Error(err))
		return
	}
	s.metrics.RecordDocumentCleanup("removed")
}

// NewDocumentCleanupHandler deletes the document referenced by a cleanup job.
func NewDocumentCleanupHandler(store documentRemover, metrics *MetricsService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		ref := job.Payload["ref"]
		if ref == "" {
			return nil
		}
		if err := store.Delete(ref); err != nil {
			return fmt.Errorf("delete receipt document %s: %w", ref, err)
		}
		metrics.RecordDocumentCleanup("removed")
		logger.Debug("receipt document removed", zap.String("ref", ref), zap.Int("attempt", job.Attempt))
		return nil
	}
}

func detectMime(upload ReceiptUpload) (string, error) {
	if upload.Content == nil {
		return "", invalid("file reader missing")
	}
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		if parsed, _, err := mime.ParseMediaType(upload.MimeType); err == nil {
			return parsed, nil
		}
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Internal(err, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to reset upload stream")
	}
	if n == 0 {
		return "", invalid("empty file")
	}
	detected, _, _ := mime.ParseMediaType(http.DetectContentType(header[:n]))
	return detected, nil
}

func documentRef(orderID, receiptNumber, original, mimeType string, now time.Time) string {
	ext := mimeExtension(mimeType)
	if ext == "" {
		ext = "." + sanitize(filepath.Ext(original))
	}
	if ext == "." {
		ext = ""
	}
	if ext == "" {
		ext = ".bin"
	}
	dir := sanitize(orderID)
	if dir == "" {
		dir = "unassigned"
	}
	return fmt.Sprintf("%s/receipt_%s_%d_%s%s", dir, sanitize(receiptNumber), now.Unix(), randomSuffix(), ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func mimeExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
