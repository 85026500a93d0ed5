package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// Constraint names of payment_orders.
const (
	ConstraintOrderCode              = "payment_orders_code_key"
	ConstraintOrderPendingEnrollment = "payment_orders_pending_enrollment_key"
	ConstraintOrderPendingList       = "payment_orders_pending_list_key"
)

// PaymentOrderRepository persists payment orders and their coverage.
type PaymentOrderRepository struct {
	db *sqlx.DB
}

// NewPaymentOrderRepository constructs the repository.
func NewPaymentOrderRepository(db *sqlx.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

func (r *PaymentOrderRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const orderColumns = `id, code, origin_type, enrollment_id, list_id, total, issued_at, due_date, state, updated_at`

func originPredicate(origin models.Origin) string {
	if origin.Type == models.OriginList {
		return "list_id = $1"
	}
	return "enrollment_id = $1"
}

// Create inserts a new order.
func (r *PaymentOrderRepository) Create(ctx context.Context, exec sqlx.ExtContext, order *models.PaymentOrder) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.State == "" {
		order.State = models.OrderStatePending
	}
	order.UpdatedAt = order.IssuedAt
	const query = `INSERT INTO payment_orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.exec(exec).ExecContext(ctx, query, order.ID, order.Code, order.OriginType, order.EnrollmentID, order.ListID,
		order.Total, order.IssuedAt, order.DueDate, order.State, order.UpdatedAt); err != nil {
		return mapPGError(err, "create payment order")
	}
	return nil
}

// AddCoverage records the enrollments settled by an individual order.
func (r *PaymentOrderRepository) AddCoverage(ctx context.Context, exec sqlx.ExtContext, orderID string, enrollmentIDs []string) error {
	if len(enrollmentIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO payment_order_enrollments (order_id, enrollment_id)
        SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, orderID, pq.Array(enrollmentIDs)); err != nil {
		return mapPGError(err, "add payment order coverage")
	}
	return nil
}

// CoveredEnrollmentIDs returns the enrollments an order covers.
func (r *PaymentOrderRepository) CoveredEnrollmentIDs(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]string, error) {
	const query = `SELECT enrollment_id FROM payment_order_enrollments WHERE order_id = $1 ORDER BY enrollment_id`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, orderID); err != nil {
		return nil, fmt.Errorf("list covered enrollments: %w", err)
	}
	return ids, nil
}

// CoverageForAnchor returns the enrollments covered by the latest order
// anchored on the enrollment.
func (r *PaymentOrderRepository) CoverageForAnchor(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) ([]string, error) {
	const query = `SELECT poe.enrollment_id FROM payment_order_enrollments poe
        WHERE poe.order_id = (
            SELECT id FROM payment_orders WHERE enrollment_id = $1 ORDER BY issued_at DESC, id DESC LIMIT 1
        ) ORDER BY poe.enrollment_id`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list anchor coverage: %w", err)
	}
	return ids, nil
}

// OrdersCovering returns every order whose coverage includes any of the
// enrollments, in issue order.
func (r *PaymentOrderRepository) OrdersCovering(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) ([]models.PaymentOrder, error) {
	if len(enrollmentIDs) == 0 {
		return []models.PaymentOrder{}, nil
	}
	const query = `SELECT ` + orderColumns + ` FROM payment_orders
        WHERE id IN (SELECT order_id FROM payment_order_enrollments WHERE enrollment_id = ANY($1))
        ORDER BY issued_at, id`
	var orders []models.PaymentOrder
	if err := sqlx.SelectContext(ctx, r.exec(exec), &orders, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("list orders covering enrollments: %w", err)
	}
	return orders, nil
}

// GetByID returns an order by id.
func (r *PaymentOrderRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentOrder, error) {
	return r.get(ctx, exec, id, false)
}

// GetForUpdate returns an order locking it for the transaction.
func (r *PaymentOrderRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentOrder, error) {
	return r.get(ctx, exec, id, true)
}

func (r *PaymentOrderRepository) get(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var order models.PaymentOrder
	if err := sqlx.GetContext(ctx, r.exec(exec), &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// ExpireStale marks pending orders of the origin whose due date passed as expired.
func (r *PaymentOrderRepository) ExpireStale(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, now time.Time) (int64, error) {
	query := `UPDATE payment_orders SET state = $2, updated_at = $3
        WHERE ` + originPredicate(origin) + ` AND state = $4 AND due_date < $3`
	res, err := r.exec(exec).ExecContext(ctx, query, origin.ID, models.OrderStateExpired, now, models.OrderStatePending)
	if err != nil {
		return 0, fmt.Errorf("expire stale payment orders: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire stale payment orders rows: %w", err)
	}
	return affected, nil
}

// FindPending returns the pending order of the origin, or sql.ErrNoRows.
func (r *PaymentOrderRepository) FindPending(ctx context.Context, exec sqlx.ExtContext, origin models.Origin) (*models.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE ` + originPredicate(origin) + ` AND state = $2 LIMIT 1`
	var order models.PaymentOrder
	if err := sqlx.GetContext(ctx, r.exec(exec), &order, query, origin.ID, models.OrderStatePending); err != nil {
		return nil, err
	}
	return &order, nil
}

// HasLiveOrder reports whether the origin has an order that freezes its amount:
// paid, verified, or pending and not yet due.
func (r *PaymentOrderRepository) HasLiveOrder(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, now time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payment_orders WHERE ` + originPredicate(origin) + `
        AND (state IN ($2, $3) OR (state = $4 AND due_date >= $5)))`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, origin.ID,
		models.OrderStatePaid, models.OrderStateVerified, models.OrderStatePending, now); err != nil {
		return false, fmt.Errorf("check live payment order: %w", err)
	}
	return exists, nil
}

// UpdateState sets the state of an order.
func (r *PaymentOrderRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, state models.OrderState) error {
	const query = `UPDATE payment_orders SET state = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return mapPGError(err, "update payment order state")
	}
	return nil
}

// CodeExists reports whether an order code is taken.
func (r *PaymentOrderRepository) CodeExists(ctx context.Context, exec sqlx.ExtContext, code string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, `SELECT EXISTS (SELECT 1 FROM payment_orders WHERE code = $1)`, code); err != nil {
		return false, fmt.Errorf("check payment order code: %w", err)
	}
	return exists, nil
}

// SumEnrollmentCosts adds the area costs of the given enrollments.
func (r *PaymentOrderRepository) SumEnrollmentCosts(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(ca.cost), 0) FROM enrollments e
        JOIN convocatoria_areas ca ON ca.id = e.area_offering_id
        WHERE e.id = ANY($1)`
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, query, pq.Array(enrollmentIDs)); err != nil {
		return decimal.Zero, fmt.Errorf("sum enrollment costs: %w", err)
	}
	return total, nil
}

// SumListCosts adds the area costs of every detail of a list.
func (r *PaymentOrderRepository) SumListCosts(ctx context.Context, exec sqlx.ExtContext, listID string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(ca.cost), 0) FROM enrollment_list_details d
        JOIN convocatoria_areas ca ON ca.id = d.area_offering_id
        WHERE d.list_id = $1`
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, query, listID); err != nil {
		return decimal.Zero, fmt.Errorf("sum list costs: %w", err)
	}
	return total, nil
}
