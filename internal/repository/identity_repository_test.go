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

func newIdentityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestIdentityRepositoryUpsertStudentReturnsStoredID(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (national_id) DO UPDATE SET")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("stu-existing", created, created.Add(time.Hour)))

	student := &models.Student{NationalID: "12345678", FirstNames: "Ana", LastNames: "Rojas", EducationalUnitID: "u-1", GradeID: "g-1", LegalTutorID: "t-1"}
	require.NoError(t, repo.UpsertStudent(context.Background(), nil, student))
	assert.Equal(t, "stu-existing", student.ID)
	assert.Equal(t, created, student.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertTutorTargetsKindTable(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO academic_tutors")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("tut-1", now, now))

	tutor := &models.Tutor{NationalID: "777", FirstNames: "Luis", LastNames: "Paz"}
	require.NoError(t, repo.UpsertTutor(context.Background(), nil, models.TutorKindAcademic, tutor))
	assert.Equal(t, "tut-1", tutor.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertStudentMapsMissingReference(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "students_grade_id_fkey"})

	err := repo.UpsertStudent(context.Background(), nil, &models.Student{NationalID: "1"})
	assert.ErrorIs(t, err, ErrReferenceMissing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryGetStudentLocksInsideTx(t *testing.T) {
	db, mock, cleanup := newIdentityRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	created := time.Now().UTC()
	columns := []string{"id", "national_id", "first_names", "last_names", "birth_date", "email",
		"educational_unit_id", "grade_id", "legal_tutor_id", "created_at", "updated_at"}
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(columns).AddRow("s-1", "12345678", "Ana", "Rojas", nil, nil, "u-1", "g-1", "t-1", created, created)
	}

	mock.ExpectQuery(`FROM students WHERE id = \$1$`).WithArgs("s-1").WillReturnRows(row())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 FOR UPDATE")).WithArgs("s-1").WillReturnRows(row())
	mock.ExpectRollback()

	student, err := repo.GetStudent(context.Background(), nil, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "12345678", student.NationalID)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	locked, err := repo.GetStudent(context.Background(), tx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", locked.GradeID)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
