package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// Constraint names of enrollment_list_details.
const (
	ConstraintListDetailWithinList = "list_details_list_student_area_key"
	ConstraintListDetailAcrossList = "list_details_student_area_key"
)

// EnrollmentListRepository persists enrollment lists and their details.
type EnrollmentListRepository struct {
	db *sqlx.DB
}

// NewEnrollmentListRepository constructs the repository.
func NewEnrollmentListRepository(db *sqlx.DB) *EnrollmentListRepository {
	return &EnrollmentListRepository{db: db}
}

func (r *EnrollmentListRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateList inserts the list header.
func (r *EnrollmentListRepository) CreateList(ctx context.Context, exec sqlx.ExtContext, list *models.EnrollmentList) error {
	if list.ID == "" {
		list.ID = uuid.NewString()
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_lists (id, educational_unit_id, convocatoria_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.exec(exec).ExecContext(ctx, query, list.ID, list.EducationalUnitID, list.ConvocatoriaID, list.CreatedAt); err != nil {
		return mapPGError(err, "create enrollment list")
	}
	return nil
}

// GetList returns a list header, locking it when forUpdate is set.
func (r *EnrollmentListRepository) GetList(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.EnrollmentList, error) {
	query := `SELECT id, educational_unit_id, convocatoria_id, created_at FROM enrollment_lists WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var list models.EnrollmentList
	if err := sqlx.GetContext(ctx, r.exec(exec), &list, query, id); err != nil {
		return nil, err
	}
	return &list, nil
}

const listDetailColumns = `id, list_id, student_id, area_offering_id, level_offering_id, academic_tutor_id, created_at`

// CreateDetail inserts one list entry. Both (list, student, area) and
// (student, area) uniqueness surface as ErrDuplicate with the constraint name.
func (r *EnrollmentListRepository) CreateDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.ListDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.NewString()
	}
	if detail.CreatedAt.IsZero() {
		detail.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_list_details (` + listDetailColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.exec(exec).ExecContext(ctx, query, detail.ID, detail.ListID, detail.StudentID, detail.AreaOfferingID,
		detail.LevelOfferingID, detail.AcademicTutorID, detail.CreatedAt); err != nil {
		return mapPGError(err, "create list detail")
	}
	return nil
}

// ListDetails returns the entries of a list in insertion order.
func (r *EnrollmentListRepository) ListDetails(ctx context.Context, exec sqlx.ExtContext, listID string) ([]models.ListDetail, error) {
	const query = `SELECT ` + listDetailColumns + ` FROM enrollment_list_details WHERE list_id = $1 ORDER BY created_at ASC, id ASC`
	var details []models.ListDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &details, query, listID); err != nil {
		return nil, fmt.Errorf("list enrollment list details: %w", err)
	}
	return details, nil
}

// GetDetail returns one entry of the list.
func (r *EnrollmentListRepository) GetDetail(ctx context.Context, exec sqlx.ExtContext, listID, detailID string) (*models.ListDetail, error) {
	const query = `SELECT ` + listDetailColumns + ` FROM enrollment_list_details WHERE list_id = $1 AND id = $2`
	var detail models.ListDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, query, listID, detailID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteDetail removes an entry.
func (r *EnrollmentListRepository) DeleteDetail(ctx context.Context, exec sqlx.ExtContext, detailID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM enrollment_list_details WHERE id = $1`, detailID); err != nil {
		return mapPGError(err, "delete list detail")
	}
	return nil
}

// ExistsForStudentArea reports whether any list already holds the pair.
func (r *EnrollmentListRepository) ExistsForStudentArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollment_list_details WHERE student_id = $1 AND area_offering_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, areaOfferingID); err != nil {
		return false, fmt.Errorf("check listed student area: %w", err)
	}
	return exists, nil
}
