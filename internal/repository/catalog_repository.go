package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// CatalogRepository reads the convocatoria reference tables. The core never
// writes them.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const levelOfferingColumns = `cl.id, cl.area_offering_id, cl.level_id, cl.level_name, cl.min_grade_id, cl.max_grade_id,
        gmin.ordinal AS min_ordinal, gmax.ordinal AS max_ordinal`

const levelOfferingJoins = `FROM convocatoria_levels cl
        JOIN grades gmin ON gmin.id = cl.min_grade_id
        JOIN grades gmax ON gmax.id = cl.max_grade_id`

// GetAreaOffering returns an area offering by id.
func (r *CatalogRepository) GetAreaOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AreaOffering, error) {
	const query = `SELECT id, convocatoria_id, area_id, area_name, cost FROM convocatoria_areas WHERE id = $1`
	var area models.AreaOffering
	if err := sqlx.GetContext(ctx, r.exec(exec), &area, query, id); err != nil {
		return nil, err
	}
	return &area, nil
}

// GetLevelOffering returns a level offering with its grade range ordinals.
func (r *CatalogRepository) GetLevelOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LevelOffering, error) {
	query := `SELECT ` + levelOfferingColumns + ` ` + levelOfferingJoins + ` WHERE cl.id = $1`
	var level models.LevelOffering
	if err := sqlx.GetContext(ctx, r.exec(exec), &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

// GetConvocatoria returns a convocatoria by id.
func (r *CatalogRepository) GetConvocatoria(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Convocatoria, error) {
	const query = `SELECT id, name, starts_at, ends_at, max_areas_per_student FROM convocatorias WHERE id = $1`
	var conv models.Convocatoria
	if err := sqlx.GetContext(ctx, r.exec(exec), &conv, query, id); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetGrade returns a grade by id.
func (r *CatalogRepository) GetGrade(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Grade, error) {
	const query = `SELECT id, name, ordinal FROM grades WHERE id = $1`
	var grade models.Grade
	if err := sqlx.GetContext(ctx, r.exec(exec), &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// ListOfferings returns every area offering of the convocatoria with its levels.
func (r *CatalogRepository) ListOfferings(ctx context.Context, convocatoriaID string) ([]models.OfferingListing, error) {
	const areaQuery = `SELECT id, convocatoria_id, area_id, area_name, cost FROM convocatoria_areas
        WHERE convocatoria_id = $1 ORDER BY area_name ASC`
	var areas []models.AreaOffering
	if err := r.db.SelectContext(ctx, &areas, areaQuery, convocatoriaID); err != nil {
		return nil, fmt.Errorf("list area offerings: %w", err)
	}

	levelQuery := `SELECT ` + levelOfferingColumns + ` ` + levelOfferingJoins + `
        JOIN convocatoria_areas ca ON ca.id = cl.area_offering_id
        WHERE ca.convocatoria_id = $1 ORDER BY gmin.ordinal ASC, cl.level_name ASC`
	var levels []models.LevelOffering
	if err := r.db.SelectContext(ctx, &levels, levelQuery, convocatoriaID); err != nil {
		return nil, fmt.Errorf("list level offerings: %w", err)
	}

	byArea := make(map[string][]models.LevelOffering, len(areas))
	for _, level := range levels {
		byArea[level.AreaOfferingID] = append(byArea[level.AreaOfferingID], level)
	}
	listings := make([]models.OfferingListing, 0, len(areas))
	for _, area := range areas {
		items := byArea[area.ID]
		if items == nil {
			items = []models.LevelOffering{}
		}
		listings = append(listings, models.OfferingListing{AreaOffering: area, Levels: items})
	}
	return listings, nil
}

// CountDependents counts enrollments and list details referencing a catalog entry.
func (r *CatalogRepository) CountDependents(ctx context.Context, kind models.CatalogKind, id string) (*models.Dependents, error) {
	var column string
	switch kind {
	case models.CatalogKindAreaOffering:
		column = "area_offering_id"
	case models.CatalogKindLevelOffering:
		column = "level_offering_id"
	default:
		return nil, fmt.Errorf("unsupported catalog kind %q", kind)
	}
	query := fmt.Sprintf(`SELECT
        (SELECT COUNT(*) FROM enrollments WHERE %[1]s = $1) AS enrollments,
        (SELECT COUNT(*) FROM enrollment_list_details WHERE %[1]s = $1) AS list_details`, column)
	deps := models.Dependents{Kind: kind, ID: id}
	if err := r.db.GetContext(ctx, &deps, query, id); err != nil {
		return nil, fmt.Errorf("count catalog dependents: %w", err)
	}
	return &deps, nil
}
