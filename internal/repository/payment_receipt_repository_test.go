package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

func newPaymentReceiptRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestPaymentReceiptRepositoryUpdateStateMapsSecondVerification(t *testing.T) {
	db, mock, cleanup := newPaymentReceiptRepoMock(t)
	defer cleanup()
	repo := NewPaymentReceiptRepository(db)

	reviewed := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_receipts SET state = $2, reviewed_at = $3 WHERE id = $1")).
		WithArgs("r-2", models.ReceiptStateVerified, reviewed).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintReceiptVerifiedOrder})

	err := repo.UpdateState(context.Background(), nil, "r-2", models.ReceiptStateVerified, reviewed)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, ConstraintReceiptVerifiedOrder, ConstraintName(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
