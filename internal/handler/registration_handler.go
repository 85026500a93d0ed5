package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, req dto.CompleteRegistrationRequest) (*dto.CompleteRegistrationResponse, error)
}

// RegistrationHandler exposes the one-shot registration endpoint.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register godoc
// @Summary Register a student with tutors, areas and a payment order
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.CompleteRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enroll-complete [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req dto.CompleteRegistrationRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.registrations.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}
