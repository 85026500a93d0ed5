package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// Constraint names of payment_receipts.
const (
	ConstraintReceiptNumber        = "payment_receipts_order_number_key"
	ConstraintReceiptVerifiedOrder = "payment_receipts_verified_order_key"
)

// PaymentReceiptRepository persists payment receipts.
type PaymentReceiptRepository struct {
	db *sqlx.DB
}

// NewPaymentReceiptRepository constructs the repository.
func NewPaymentReceiptRepository(db *sqlx.DB) *PaymentReceiptRepository {
	return &PaymentReceiptRepository{db: db}
}

func (r *PaymentReceiptRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const receiptColumns = `id, order_id, receipt_number, payer_name, payment_date, amount, document_ref, state, created_at, reviewed_at`

// Create inserts a receipt.
func (r *PaymentReceiptRepository) Create(ctx context.Context, exec sqlx.ExtContext, receipt *models.PaymentReceipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.State == "" {
		receipt.State = models.ReceiptStatePending
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payment_receipts (` + receiptColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.exec(exec).ExecContext(ctx, query, receipt.ID, receipt.OrderID, receipt.ReceiptNumber, receipt.PayerName,
		receipt.PaymentDate, receipt.Amount, receipt.DocumentRef, receipt.State, receipt.CreatedAt, receipt.ReviewedAt); err != nil {
		return mapPGError(err, "create payment receipt")
	}
	return nil
}

// GetByID returns a receipt by id.
func (r *PaymentReceiptRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentReceipt, error) {
	return r.get(ctx, exec, id, false)
}

// GetForUpdate returns a receipt locking it for the transaction.
func (r *PaymentReceiptRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentReceipt, error) {
	return r.get(ctx, exec, id, true)
}

func (r *PaymentReceiptRepository) get(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.PaymentReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM payment_receipts WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var receipt models.PaymentReceipt
	if err := sqlx.GetContext(ctx, r.exec(exec), &receipt, query, id); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListByOrder returns the receipts of an order, oldest first.
func (r *PaymentReceiptRepository) ListByOrder(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]models.PaymentReceipt, error) {
	const query = `SELECT ` + receiptColumns + ` FROM payment_receipts WHERE order_id = $1 ORDER BY created_at ASC`
	var receipts []models.PaymentReceipt
	if err := sqlx.SelectContext(ctx, r.exec(exec), &receipts, query, orderID); err != nil {
		return nil, fmt.Errorf("list order receipts: %w", err)
	}
	return receipts, nil
}

// UpdateState records the review decision. At most one receipt per order may be
// verified; a second surfaces as ErrDuplicate.
func (r *PaymentReceiptRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, state models.ReceiptState, reviewedAt time.Time) error {
	const query = `UPDATE payment_receipts SET state = $2, reviewed_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, state, reviewedAt); err != nil {
		return mapPGError(err, "update payment receipt state")
	}
	return nil
}

// Delete removes a receipt row.
func (r *PaymentReceiptRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM payment_receipts WHERE id = $1`, id); err != nil {
		return mapPGError(err, "delete payment receipt")
	}
	return nil
}
