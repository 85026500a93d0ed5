package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

func newPaymentOrderRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestPaymentOrderRepositoryExpireStaleUsesOriginColumn(t *testing.T) {
	db, mock, cleanup := newPaymentOrderRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("WHERE list_id = $1 AND state = $4 AND due_date < $3")).
		WithArgs("list-1", models.OrderStateExpired, now, models.OrderStatePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.ExpireStale(context.Background(), nil, models.ListOrigin("list-1"), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentOrderRepositorySumEnrollmentCosts(t *testing.T) {
	db, mock, cleanup := newPaymentOrderRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(ca.cost), 0) FROM enrollments e")).
		WithArgs(pq.Array([]string{"e-1", "e-2"})).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow([]byte("180.50")))

	total, err := repo.SumEnrollmentCosts(context.Background(), nil, []string{"e-1", "e-2"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("180.5").Equal(total))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentOrderRepositoryCreateMapsPendingIndex(t *testing.T) {
	db, mock, cleanup := newPaymentOrderRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_orders")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintOrderPendingEnrollment})

	enrollmentID, listID := models.IndividualOrigin("e-1").Columns()
	err := repo.Create(context.Background(), nil, &models.PaymentOrder{
		Code: "OP-20250301-ABCDEF", OriginType: models.OriginIndividual, EnrollmentID: enrollmentID, ListID: listID,
		Total: decimal.NewFromInt(100), IssuedAt: time.Now(), DueDate: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, ConstraintOrderPendingEnrollment, ConstraintName(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentOrderRepositoryOrdersCovering(t *testing.T) {
	db, mock, cleanup := newPaymentOrderRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)

	issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id IN (SELECT order_id FROM payment_order_enrollments WHERE enrollment_id = ANY($1))")).
		WithArgs(pq.Array([]string{"e-2"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "origin_type", "enrollment_id", "list_id", "total", "issued_at", "due_date", "state", "updated_at"}).
			AddRow("o-1", "OP-20260310-ABCDEF", "INDIVIDUAL", "e-1", nil, "150.00", issued, issued.Add(72*time.Hour), "PENDING", issued))

	orders, err := repo.OrdersCovering(context.Background(), nil, []string{"e-2"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].EnrollmentID)
	assert.Equal(t, "e-1", *orders[0].EnrollmentID)
	assert.True(t, orders[0].Live(issued.Add(time.Hour)))
	assert.False(t, orders[0].Live(issued.Add(73*time.Hour)))

	none, err := repo.OrdersCovering(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}
