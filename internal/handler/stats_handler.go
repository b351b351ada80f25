package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tolcsim-backend/internal/middleware"
	"github.com/stemsi/tolcsim-backend/internal/response"
	"github.com/stemsi/tolcsim-backend/internal/service"
)

// StatsHandler serves per-user analytics.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats godoc
// GET /api/v1/stats
// Returns one entry per exam type the caller has completed.
func (h *StatsHandler) GetStats(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	stats, err := h.statsService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
