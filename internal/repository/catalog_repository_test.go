package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

func newCatalogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestCatalogRepositoryListOfferingsGroupsLevels(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM convocatoria_areas")).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "convocatoria_id", "area_id", "area_name", "cost"}).
			AddRow("a-1", "conv-1", "area-math", "Matemática", "100.00").
			AddRow("a-2", "conv-1", "area-phys", "Física", "80.50"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM convocatoria_levels cl")).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "area_offering_id", "level_id", "level_name", "min_grade_id", "max_grade_id", "min_ordinal", "max_ordinal"}).
			AddRow("l-1", "a-1", "lvl-1", "Primer nivel", "g-1", "g-3", 1, 3))

	listings, err := repo.ListOfferings(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.True(t, decimal.RequireFromString("100").Equal(listings[0].Cost))
	require.Len(t, listings[0].Levels, 1)
	assert.Equal(t, 3, listings[0].Levels[0].MaxOrdinal)
	assert.NotNil(t, listings[1].Levels)
	assert.Empty(t, listings[1].Levels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryCountDependents(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE level_offering_id = $1")).
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollments", "list_details"}).AddRow(2, 1))

	deps, err := repo.CountDependents(context.Background(), models.CatalogKindLevelOffering, "l-1")
	require.NoError(t, err)
	assert.Equal(t, 2, deps.Enrollments)
	assert.Equal(t, 1, deps.ListDetails)
	assert.False(t, deps.Deletable())

	_, err = repo.CountDependents(context.Background(), models.CatalogKind("grades"), "g-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
