package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tolcsim-backend/internal/response"
	"github.com/stemsi/tolcsim-backend/internal/service"
)

// unavailableRetryAfter is the delay suggested to clients after a storage
// outage or a contended session.
const unavailableRetryAfter = 2 * time.Second

// failFromError maps a service error to its status code and ErrCode. The
// error is attached to the context so the access log records it.
func failFromError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSectionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrInvalidState):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidState, detail(err))
	case errors.Is(err, service.ErrValidation):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, detail(err))
	case errors.Is(err, service.ErrUnknownExamType):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownExamType)
	case errors.Is(err, service.ErrNotCompleted):
		response.Fail(c, http.StatusBadRequest, response.ErrNotCompleted)
	case errors.Is(err, service.ErrServiceUnavailable):
		response.FailRetryAfter(c, http.StatusServiceUnavailable, response.ErrServiceUnavailable, unavailableRetryAfter)
	case errors.Is(err, service.ErrStorage):
		response.Fail(c, http.StatusBadGateway, response.ErrStorage)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func detail(err error) map[string]string {
	return map[string]string{"detail": err.Error()}
}
