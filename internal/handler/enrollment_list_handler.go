package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/pkg/response"
)

type enrollmentListService interface {
	CreateList(ctx context.Context, req dto.CreateListRequest) (*models.EnrollmentListDetail, error)
	Get(ctx context.Context, listID string) (*models.EnrollmentListDetail, error)
	AddDetail(ctx context.Context, listID string, req dto.ListDetailRequest) (*models.ListDetail, error)
	RemoveDetail(ctx context.Context, listID, detailID string) error
}

// EnrollmentListHandler exposes bulk enrollment lists.
type EnrollmentListHandler struct {
	lists enrollmentListService
}

// NewEnrollmentListHandler constructs EnrollmentListHandler.
func NewEnrollmentListHandler(lists enrollmentListService) *EnrollmentListHandler {
	return &EnrollmentListHandler{lists: lists}
}

// Create godoc
// @Summary Create an enrollment list with its entries
// @Tags EnrollmentLists
// @Accept json
// @Produce json
// @Param payload body dto.CreateListRequest true "List payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-lists [post]
func (h *EnrollmentListHandler) Create(c *gin.Context) {
	var req dto.CreateListRequest
	if !bindJSON(c, &req) {
		return
	}
	list, err := h.lists.CreateList(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, list)
}

// Get godoc
// @Summary Get enrollment list
// @Tags EnrollmentLists
// @Produce json
// @Param id path string true "List ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-lists/{id} [get]
func (h *EnrollmentListHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.lists.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

// AddDetail godoc
// @Summary Add an entry to an enrollment list
// @Tags EnrollmentLists
// @Accept json
// @Produce json
// @Param id path string true "List ID"
// @Param payload body dto.ListDetailRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-lists/{id}/details [post]
func (h *EnrollmentListHandler) AddDetail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ListDetailRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.lists.AddDetail(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, detail)
}

// RemoveDetail godoc
// @Summary Remove an entry from an enrollment list
// @Tags EnrollmentLists
// @Param id path string true "List ID"
// @Param detailId path string true "Entry ID"
// @Success 204
// @Router /enrollment-lists/{id}/details/{detailId} [delete]
func (h *EnrollmentListHandler) RemoveDetail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detailID, ok := pathID(c, "detailId")
	if !ok {
		return
	}
	if err := h.lists.RemoveDetail(c.Request.Context(), id, detailID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
