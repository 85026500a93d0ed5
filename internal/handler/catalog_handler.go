package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/olimpiada-registration-api/internal/middleware"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/pkg/response"
)

type catalogService interface {
	ListOfferings(ctx context.Context, convocatoriaID string) ([]models.OfferingListing, bool, error)
	Dependents(ctx context.Context, kind models.CatalogKind, id string) (*models.Dependents, error)
}

// CatalogHandler exposes read-only catalog lookups.
type CatalogHandler struct {
	catalog catalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog catalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Offerings godoc
// @Summary List area offerings of a convocatoria with levels and costs
// @Tags Catalog
// @Produce json
// @Param id path string true "Convocatoria ID"
// @Success 200 {object} response.Envelope
// @Router /convocatorias/{id}/offerings [get]
func (h *CatalogHandler) Offerings(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, hit, err := h.catalog.ListOfferings(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respond(c, http.StatusOK, items)
}

// Dependents godoc
// @Summary Count enrollments and list entries referencing a catalog entry
// @Tags Catalog
// @Produce json
// @Param kind path string true "area-offerings or level-offerings"
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /catalog/{kind}/{id}/dependents [get]
func (h *CatalogHandler) Dependents(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deps, err := h.catalog.Dependents(c.Request.Context(), models.CatalogKind(c.Param("kind")), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"kind":        deps.Kind,
		"id":          deps.ID,
		"enrollments": deps.Enrollments,
		"listDetails": deps.ListDetails,
		"deletable":   deps.Deletable(),
	})
}
