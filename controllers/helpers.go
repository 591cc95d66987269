package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/services"
)

// respondError writes the plain {"error": ...} shape used by the /api routes.
func respondError(c *gin.Context, svcErr *services.ServiceError) {
	body := gin.H{"error": svcErr.Message}
	if svcErr.Details != "" {
		body["details"] = svcErr.Details
	}
	c.JSON(svcErr.StatusCode, body)
}

// respondData writes a successful /api/v1 envelope.
func respondData(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, models.APIResponse{Success: true, Data: data, Message: message})
}

// respondEnvelopeError writes a failed /api/v1 envelope.
func respondEnvelopeError(c *gin.Context, svcErr *services.ServiceError) {
	c.JSON(svcErr.StatusCode, models.APIResponse{Success: false, Error: svcErr.Message})
}

func respondInvalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "Invalid request", Message: err.Error()})
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(c *gin.Context) (int, int) {
	const (
		maxLimit     = 100
		defaultPage  = 1
		defaultLimit = 20
	)

	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
