package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const enrollmentColumns = `id, student_id, area_offering_id, level_offering_id, academic_tutor_id, state, created_at, updated_at`

// Create persists a new enrollment. The (student, area offering) unique
// constraint surfaces as ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.State == "" {
		enrollment.State = models.EnrollmentStatePending
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (` + enrollmentColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.AreaOfferingID, enrollment.LevelOfferingID,
		enrollment.AcademicTutorID, enrollment.State, enrollment.CreatedAt, enrollment.UpdatedAt); err != nil {
		return mapPGError(err, "create enrollment")
	}
	return nil
}

// GetByID returns an enrollment by its ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

const enrollmentDetailQuery = `SELECT e.id, e.student_id, e.area_offering_id, e.level_offering_id, e.academic_tutor_id,
        e.state, e.created_at, e.updated_at, ca.convocatoria_id, ca.area_name, cl.level_name
        FROM enrollments e
        JOIN convocatoria_areas ca ON ca.id = e.area_offering_id
        JOIN convocatoria_levels cl ON cl.id = e.level_offering_id`

// GetDetail returns an enrollment with catalog names.
func (r *EnrollmentRepository) GetDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailQuery+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns every enrollment of the student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, enrollmentDetailQuery+` WHERE e.student_id = $1 ORDER BY e.created_at DESC`, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return details, nil
}

// ListByIDs returns the enrollments with the given ids, locking them when run
// inside a transaction.
func (r *EnrollmentRepository) ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error) {
	if len(ids) == 0 {
		return []models.Enrollment{}, nil
	}
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = ANY($1) ORDER BY id`
	if exec != nil {
		query += " FOR UPDATE"
	}
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list enrollments by id: %w", err)
	}
	return enrollments, nil
}

// FindByStudentAndArea returns the enrollment for the pair locking it for the
// rest of the transaction. sql.ErrNoRows when absent.
func (r *EnrollmentRepository) FindByStudentAndArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND area_offering_id = $2`
	if exec != nil {
		query += " FOR UPDATE"
	}
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, studentID, areaOfferingID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountCommitments counts the areas a student holds in a convocatoria: direct
// enrollments plus list entries that have not been materialized yet.
func (r *EnrollmentRepository) CountCommitments(ctx context.Context, exec sqlx.ExtContext, studentID, convocatoriaID string) (int, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM enrollments e
            JOIN convocatoria_areas ca ON ca.id = e.area_offering_id
            WHERE e.student_id = $1 AND ca.convocatoria_id = $2)
        +
        (SELECT COUNT(*) FROM enrollment_list_details d
            JOIN convocatoria_areas ca ON ca.id = d.area_offering_id
            WHERE d.student_id = $1 AND ca.convocatoria_id = $2
            AND NOT EXISTS (
                SELECT 1 FROM enrollments e
                WHERE e.student_id = d.student_id AND e.area_offering_id = d.area_offering_id
            ))`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, studentID, convocatoriaID); err != nil {
		return 0, fmt.Errorf("count student commitments: %w", err)
	}
	return count, nil
}

// UpdateState moves the listed enrollments currently in one of from to state
// to, returning the number of rows changed.
func (r *EnrollmentRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, ids []string, from []models.EnrollmentState, to models.EnrollmentState) (int64, error) {
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	fromValues := make([]string, len(from))
	for i, state := range from {
		fromValues[i] = string(state)
	}
	const query = `UPDATE enrollments SET state = $1, updated_at = $2 WHERE id = ANY($3) AND state = ANY($4)`
	res, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), pq.Array(ids), pq.Array(fromValues))
	if err != nil {
		return 0, fmt.Errorf("update enrollment state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update enrollment state rows: %w", err)
	}
	return affected, nil
}
