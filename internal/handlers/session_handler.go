package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessions  *services.SessionManager
	validator *validator.Validator
}

func NewSessionHandler(sessions *services.SessionManager, validator *validator.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
		validator:   validator,
	}
}

// ListLevels returns the static level and module table
// @Summary List levels
// @Tags levels
// @Produce json
// @Success 200 {object} SuccessResponse{data=[]models.LevelConfig}
// @Router /levels [get]
func (h *SessionHandler) ListLevels(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Levels retrieved successfully",
		Data:    h.sessions.Catalog().All(),
	})
}

// CreateSession creates a session and starts loading its content
// @Summary Create session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body models.CreateSessionRequest true "Level and module"
// @Success 201 {object} SuccessResponse{data=services.Snapshot}
// @Failure 400 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	level, err := models.ParseLevel(req.Level)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid level", err)
		return
	}
	module, err := models.ParseModule(req.Module)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid module", err)
		return
	}

	h.LogRequest(c, "Creating session", "level", level, "module", module)

	s, err := h.sessions.Create(c.Request.Context(), level, module)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Session created",
		Data:    s.Snapshot(),
	})
}

// GetSession returns the current snapshot
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse{data=services.Snapshot}
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Session retrieved", Data: s.Snapshot()})
}

// RetrySession reloads content after a failed load
// @Router /sessions/{id}/retry [post]
func (h *SessionHandler) RetrySession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Retry(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusAccepted, "Retrying content load", s.Snapshot())
}

// StartSession starts the countdown
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Start(); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogRequest(c, "Exam started")
	h.RespondWithSuccess(c, http.StatusOK, "Exam started", s.Snapshot())
}

// Navigate moves between questions
// @Accept json
// @Param navigation body models.NavigateRequest true "Navigation action"
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req models.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	var err error
	switch req.Action {
	case models.NavNext:
		err = s.Next()
	case models.NavPrevious:
		err = s.Previous()
	case models.NavJump:
		err = s.JumpTo(*req.Index)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Navigated", s.Snapshot())
}

// SaveAnswer overwrites one answer
// @Accept json
// @Param answer body models.AnswerRequest true "Answer"
// @Router /sessions/{id}/answer [put]
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	var err error
	if req.Index != nil {
		err = s.AnswerAt(*req.Index, *req.Answer)
	} else {
		err = s.Answer(*req.Answer)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer saved", s.Snapshot())
}

// FinishSession ends the exam; scoring continues in the background
// @Router /sessions/{id}/finish [post]
func (h *SessionHandler) FinishSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Finish(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogRequest(c, "Exam finished")
	h.RespondWithSuccess(c, http.StatusAccepted, "Exam submitted", s.Snapshot())
}

// GetResult returns the session result, from the cache once the session is gone
// @Success 200 {object} SuccessResponse{data=models.SessionResult}
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/result [get]
func (h *SessionHandler) GetResult(c *gin.Context) {
	id := parseSessionID(c)
	if id == "" {
		return
	}
	res, err := h.sessions.Result(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Result retrieved", Data: res})
}

// ExportReview returns the review workbook
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /sessions/{id}/review.xlsx [get]
func (h *SessionHandler) ExportReview(c *gin.Context) {
	id := parseSessionID(c)
	if id == "" {
		return
	}
	res, err := h.sessions.Result(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	data, err := services.ExportResult(res)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to export review", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="review-%s-%s-%s.xlsx"`, res.Level, res.Module, id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GetAudio streams the decoded clip of a listening scenario
// @Param part path int true "Part index"
// @Param scenario path int true "Scenario index"
// @Router /sessions/{id}/audio/{part}/{scenario} [get]
func (h *SessionHandler) GetAudio(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	part, err1 := strconv.Atoi(c.Param("part"))
	scenario, err2 := strconv.Atoi(c.Param("scenario"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid part or scenario"})
		return
	}

	asset, err := s.Audio(part, scenario)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	data, err := asset.Bytes()
	if err != nil {
		h.RespondWithError(c, http.StatusGone, "Audio no longer available", err)
		return
	}
	c.Data(http.StatusOK, asset.MIME(), data)
}

// DeleteSession abandons a session
// @Router /sessions/{id} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id := parseSessionID(c)
	if id == "" {
		return
	}
	if err := h.sessions.Remove(id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogRequest(c, "Session removed")
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) session(c *gin.Context) (*services.ExamSession, bool) {
	id := parseSessionID(c)
	if id == "" {
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return s, true
}
