package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/tolcsim-backend/internal/middleware"
	"github.com/stemsi/tolcsim-backend/internal/model"
	"github.com/stemsi/tolcsim-backend/internal/response"
	"github.com/stemsi/tolcsim-backend/internal/service"
	"github.com/stemsi/tolcsim-backend/internal/validator"
)

// SessionHandler handles the exam simulation lifecycle.
type SessionHandler struct {
	sessionService *service.ExamSessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// CreateSession godoc
// POST /api/v1/sessions
// Creates a session with every section pending.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), userID, req.ExamType)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// GetSession godoc
// GET /api/v1/sessions/:id
// Returns the session document. Answer keys of open sections are withheld.
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), userID, sessionID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// StartSection godoc
// POST /api/v1/sessions/:id/sections/:section_id/start
// Opens a pending section and returns its questions.
func (h *SessionHandler) StartSection(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}

	result, err := h.sessionService.StartSection(c.Request.Context(), userID, sessionID, c.Param("section_id"))
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CompleteSection godoc
// POST /api/v1/sessions/:id/sections/:section_id/complete
// Scores the submitted answers. Resubmitting a completed section is a no-op.
func (h *SessionHandler) CompleteSection(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}

	var req model.CompleteSectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.CompleteSection(c.Request.Context(), userID, sessionID, c.Param("section_id"), req.Answers)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetResults godoc
// GET /api/v1/sessions/:id/results
// Returns the formatted results of a completed session.
func (h *SessionHandler) GetResults(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}

	results, err := h.sessionService.GetResults(c.Request.Context(), userID, sessionID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// ListHistory godoc
// GET /api/v1/history?page=&per_page=
// Lists the caller's completed sessions, newest first.
func (h *SessionHandler) ListHistory(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.HistoryQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.Normalize()

	sessions, pagination, err := h.sessionService.ListHistory(c.Request.Context(), userID, q.Page, q.PerPage)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, pagination)
}

// sessionParams reads the caller and the :id param, writing the error
// response itself when either is missing or malformed.
func sessionParams(c *gin.Context) (string, uuid.UUID, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return "", uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", uuid.Nil, false
	}
	return userID, sessionID, true
}
