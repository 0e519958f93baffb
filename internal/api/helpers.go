// Package api exposes the engine's HTTP surface: workflow and
// trigger CRUD, execution queries and lifecycle operations, and route
// assembly for the public ingress endpoints and the websocket namespace.
// One handler struct per entity, gin bindings, a shared error envelope.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/pkg/models"
)

// errorBody is the uniform error envelope: {statusCode, message, error}.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorBody{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

// respondDomainError maps the engine's error taxonomy onto
// HTTP codes: not-found sentinels to 404, validation to 400, forbidden to
// 403, everything else to 500.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrWorkflowNotFound),
		errors.Is(err, models.ErrExecutionNotFound),
		errors.Is(err, models.ErrTriggerNotFound),
		errors.Is(err, models.ErrCredentialNotFound),
		errors.Is(err, models.ErrNodeNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	default:
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}
