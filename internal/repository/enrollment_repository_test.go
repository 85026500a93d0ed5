package repository

import (
	"context"
	"database/sql"
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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestEnrollmentRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_student_area_key"})

	err := repo.Create(context.Background(), nil, &models.Enrollment{StudentID: "s-1", AreaOfferingID: "a-1", LevelOfferingID: "l-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(sqlmock.AnyArg(), "s-1", "a-1", "l-1", nil, models.EnrollmentStatePending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{StudentID: "s-1", AreaOfferingID: "a-1", LevelOfferingID: "l-1"}
	require.NoError(t, repo.Create(context.Background(), nil, enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatePending, enrollment.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStateFiltersByCurrentState(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET state = $1, updated_at = $2 WHERE id = ANY($3) AND state = ANY($4)")).
		WithArgs(models.EnrollmentStateVerified, sqlmock.AnyArg(), pq.Array([]string{"e-1", "e-2"}), pq.Array([]string{"PENDING", "PAID"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.UpdateState(context.Background(), nil, []string{"e-1", "e-2"},
		[]models.EnrollmentState{models.EnrollmentStatePending, models.EnrollmentStatePaid}, models.EnrollmentStateVerified)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStateNoopWithoutIDs(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	affected, err := repo.UpdateState(context.Background(), nil, nil, []models.EnrollmentState{models.EnrollmentStatePaid}, models.EnrollmentStateVerified)
	require.NoError(t, err)
	assert.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByStudentAndAreaLocksInsideTx(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND area_offering_id = $2 FOR UPDATE")).
		WithArgs("s-1", "a-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	_, err = repo.FindByStudentAndArea(context.Background(), tx, "s-1", "a-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByIDsLocksInIDOrder(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = ANY($1) ORDER BY id FOR UPDATE")).
		WithArgs(pq.Array([]string{"e-2", "e-1"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "area_offering_id", "level_offering_id", "academic_tutor_id", "state", "created_at", "updated_at"}).
			AddRow("e-1", "s-1", "a-1", "l-1", nil, "PENDING", created, created).
			AddRow("e-2", "s-1", "a-2", "l-2", nil, "VERIFIED", created, created))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	enrollments, err := repo.ListByIDs(context.Background(), tx, []string{"e-2", "e-1"})
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, models.EnrollmentStateVerified, enrollments[1].State)
	require.NoError(t, tx.Rollback())

	empty, err := repo.ListByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}
