package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// IdentityRepository persists students and tutors keyed by national ID.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs the repository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertStudent inserts the student or overwrites the attributes of the row
// sharing its national ID. ID and timestamps are refreshed from the stored row.
func (r *IdentityRepository) UpsertStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student == nil {
		return fmt.Errorf("student payload is nil")
	}
	now := time.Now().UTC()
	const query = `INSERT INTO students (id, national_id, first_names, last_names, birth_date, email,
            educational_unit_id, grade_id, legal_tutor_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
        ON CONFLICT (national_id) DO UPDATE SET
            first_names = EXCLUDED.first_names,
            last_names = EXCLUDED.last_names,
            birth_date = COALESCE(EXCLUDED.birth_date, students.birth_date),
            email = COALESCE(EXCLUDED.email, students.email),
            educational_unit_id = EXCLUDED.educational_unit_id,
            grade_id = EXCLUDED.grade_id,
            legal_tutor_id = EXCLUDED.legal_tutor_id,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		uuid.NewString(), student.NationalID, student.FirstNames, student.LastNames, student.BirthDate, student.Email,
		student.EducationalUnitID, student.GradeID, student.LegalTutorID, now)
	if err := row.Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt); err != nil {
		return mapPGError(err, "upsert student")
	}
	return nil
}

// GetStudent returns a student by id. Inside a transaction the row stays
// locked until commit, so enrollment checks for one student run one at a time.
func (r *IdentityRepository) GetStudent(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	query := `SELECT id, national_id, first_names, last_names, birth_date, email, educational_unit_id,
        grade_id, legal_tutor_id, created_at, updated_at FROM students WHERE id = $1`
	if exec != nil {
		query += " FOR UPDATE"
	}
	var student models.Student
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpsertTutor inserts or refreshes a legal or academic tutor by national ID.
func (r *IdentityRepository) UpsertTutor(ctx context.Context, exec sqlx.ExtContext, kind models.TutorKind, tutor *models.Tutor) error {
	if tutor == nil {
		return fmt.Errorf("tutor payload is nil")
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %[1]s (id, national_id, first_names, last_names, email, phone, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT (national_id) DO UPDATE SET
            first_names = EXCLUDED.first_names,
            last_names = EXCLUDED.last_names,
            email = COALESCE(EXCLUDED.email, %[1]s.email),
            phone = COALESCE(EXCLUDED.phone, %[1]s.phone),
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`, kind.Table())
	row := r.exec(exec).QueryRowxContext(ctx, query,
		uuid.NewString(), tutor.NationalID, tutor.FirstNames, tutor.LastNames, tutor.Email, tutor.Phone, now)
	if err := row.Scan(&tutor.ID, &tutor.CreatedAt, &tutor.UpdatedAt); err != nil {
		return mapPGError(err, fmt.Sprintf("upsert %s tutor", kind))
	}
	return nil
}
