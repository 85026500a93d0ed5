package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/olimpiada-registration-api/internal/middleware"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
	"github.com/noah-isme/olimpiada-registration-api/pkg/response"
)

// bindJSON decodes the body into dest, answering 400 when it is malformed.
// Field rules are enforced by the services.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// pathID reads a UUID path parameter in canonical form, answering 422 when it
// is malformed.
func pathID(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("%s must be a UUID", name)))
		return "", false
	}
	return id.String(), true
}

func respond(c *gin.Context, status int, data interface{}) {
	response.JSON(c, status, data, nil, middleware.ExtractMeta(c))
}
