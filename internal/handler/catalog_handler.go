package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stemsi/tolcsim-backend/internal/response"
)

// CatalogHandler serves the static exam catalog.
type CatalogHandler struct{}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// catalogEntry adds the computed total duration to an exam type.
type catalogEntry struct {
	model.ExamType
	TotalDuration int `json:"total_duration"`
}

// ListExamTypes godoc
// GET /api/v1/exam-types
// Lists every TOLC variant with its section layout.
func (h *CatalogHandler) ListExamTypes(c *gin.Context) {
	types := model.ExamTypes()
	out := make([]catalogEntry, len(types))
	for i, t := range types {
		out[i] = catalogEntry{ExamType: t, TotalDuration: t.TotalDuration()}
	}

	response.Success(c, http.StatusOK, gin.H{"exam_types": out})
}
