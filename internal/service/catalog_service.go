package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/pkg/cache"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
)

type catalogStore interface {
	GetAreaOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AreaOffering, error)
	GetLevelOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LevelOffering, error)
	GetConvocatoria(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Convocatoria, error)
	ListOfferings(ctx context.Context, convocatoriaID string) ([]models.OfferingListing, error)
	CountDependents(ctx context.Context, kind models.CatalogKind, id string) (*models.Dependents, error)
}

// CatalogService serves the read-only offering catalog.
type CatalogService struct {
	store  catalogStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService constructs the service. A nil cache disables caching.
func NewCatalogService(store catalogStore, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{store: store, cache: cacheSvc, ttl: ttl, logger: logger}
}

// ListOfferings returns the areas of a convocatoria with their levels and
// costs, reporting whether the listing came from cache.
func (s *CatalogService) ListOfferings(ctx context.Context, convocatoriaID string) ([]models.OfferingListing, bool, error) {
	if _, err := s.store.GetConvocatoria(ctx, nil, convocatoriaID); err != nil {
		return nil, false, lookupError(err, "convocatoria not found", "failed to load convocatoria")
	}
	items, hit, err := cachedLoad(ctx, s.cache, cache.Key("offerings", convocatoriaID), s.ttl,
		func(ctx context.Context) ([]models.OfferingListing, error) {
			return s.store.ListOfferings(ctx, convocatoriaID)
		})
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list offerings")
	}
	if items == nil {
		items = []models.OfferingListing{}
	}
	s.logger.Debug("offerings listed", zap.String("convocatoria_id", convocatoriaID), zap.Bool("cache_hit", hit))
	return items, hit, nil
}

// Dependents counts the rows referencing a catalog entry.
func (s *CatalogService) Dependents(ctx context.Context, kind models.CatalogKind, id string) (*models.Dependents, error) {
	var err error
	switch kind {
	case models.CatalogKindAreaOffering:
		_, err = s.store.GetAreaOffering(ctx, nil, id)
	case models.CatalogKindLevelOffering:
		_, err = s.store.GetLevelOffering(ctx, nil, id)
	default:
		return nil, invalid("kind must be area-offerings or level-offerings")
	}
	if err != nil {
		return nil, lookupError(err, "catalog entry not found", "failed to load catalog entry")
	}
	deps, err := s.store.CountDependents(ctx, kind, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count dependents")
	}
	return deps, nil
}

// InvalidateOfferings drops the cached listing of a convocatoria.
func (s *CatalogService) InvalidateOfferings(ctx context.Context, convocatoriaID string) {
	s.cache.Invalidate(ctx, cache.Key("offerings", convocatoriaID))
}
