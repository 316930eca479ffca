package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/assessment-delivery/internal/delivery"
	"github.com/edupulse/assessment-delivery/internal/services"
	"github.com/edupulse/assessment-delivery/internal/utils"
)

type SessionHandler struct {
	BaseHandler
	deliveryService services.DeliveryService
	exportService   services.ExportService
	validator       *utils.Validator
}

func NewSessionHandler(
	deliveryService services.DeliveryService,
	exportService services.ExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:     NewBaseHandler(logger),
		deliveryService: deliveryService,
		exportService:   exportService,
		validator:       validator,
	}
}

// StartSession starts a delivery session
// @Summary Start session
// @Description Starts a new delivery session for an assessment
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body services.StartSessionRequest true "Session parameters"
// @Success 201 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting session",
		"assessment_id", req.AssessmentID,
		"is_preview", req.IsPreview)

	view, err := h.deliveryService.StartSession(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// ResumeSession resumes an interrupted session from its snapshot
// @Summary Resume session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/resume [post]
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	utils.GetLoggerFromContext(c).Info("Resuming session", "session_id", sessionID)

	view, err := h.deliveryService.ResumeSession(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetSession returns the current view of a session
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	view, err := h.deliveryService.GetView(sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetQuestions returns the session's sequenced question list
// @Summary List session questions
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/questions [get]
func (h *SessionHandler) GetQuestions(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	questions, err := h.deliveryService.GetQuestions(sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions retrieved",
		Data:    questions,
	})
}

// SaveAnswer stores an answer payload for a question
// @Summary Save answer
// @Description Validates and stores a type-tagged answer payload
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing answer payload",
		})
		return
	}

	if err := h.deliveryService.SaveAnswer(c.Request.Context(), sessionID, questionID, json.RawMessage(payload)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved"})
}

// GetAnswer returns the stored answer for a question, if any
// @Summary Get answer
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id} [get]
func (h *SessionHandler) GetAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	answer, err := h.deliveryService.GetAnswer(sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Answer retrieved",
		Data:    answer,
	})
}

// Navigate moves the session position
// @Summary Navigate
// @Description Moves to the next, previous, or an absolute question position
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body services.NavigateRequest true "Navigation request"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	state, err := h.deliveryService.Navigate(c.Request.Context(), sessionID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Navigation applied",
		Data:    state,
	})
}

type moveOrderingRequest struct {
	Index int  `json:"index"`
	Up    bool `json:"up"`
}

// MoveOrderingItem applies one adjacent swap on an ordering question
// @Summary Move ordering item
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/questions/{question_id}/ordering/move [post]
func (h *SessionHandler) MoveOrderingItem(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req moveOrderingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.deliveryService.MoveOrderingItem(c.Request.Context(), sessionID, questionID, req.Index, req.Up); err != nil {
		h.handleServiceError(c, err)
		return
	}

	order, err := h.deliveryService.OrderingPresentation(sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Order updated",
		Data:    order,
	})
}

type stepNumericRequest struct {
	Up bool `json:"up"`
}

// StepNumeric increments or decrements a numeric answer by the format step
// @Summary Step numeric answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/questions/{question_id}/numeric/step [post]
func (h *SessionHandler) StepNumeric(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req stepNumericRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.deliveryService.StepNumeric(c.Request.Context(), sessionID, questionID, req.Up); err != nil {
		h.handleServiceError(c, err)
		return
	}

	answer, err := h.deliveryService.GetAnswer(sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Value updated",
		Data:    answer,
	})
}

// GetMatchingPresentation returns the shuffled response column
// @Summary Matching presentation
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/questions/{question_id}/matching [get]
func (h *SessionHandler) GetMatchingPresentation(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	items, err := h.deliveryService.MatchingPresentation(sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Presentation retrieved",
		Data:    items,
	})
}

// GetOrderingPresentation returns the current ordering item order
// @Summary Ordering presentation
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/questions/{question_id}/ordering [get]
func (h *SessionHandler) GetOrderingPresentation(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	order, err := h.deliveryService.OrderingPresentation(sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Presentation retrieved",
		Data:    order,
	})
}

// SubmitSession runs the submission pipeline
// @Summary Submit session
// @Description Validates completeness and submits the session's answers
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", sessionID)

	result, err := h.deliveryService.Submit(c.Request.Context(), sessionID, false)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session submitted",
		Data:    result,
	})
}

// GetSummary returns the final-review statistics
// @Summary Session summary
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/summary [get]
func (h *SessionHandler) GetSummary(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	summary, err := h.deliveryService.Summary(sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Summary retrieved",
		Data:    summary,
	})
}

// ExportSession downloads the session's answer report
// @Summary Export session report
// @Tags sessions
// @Produce application/octet-stream
// @Param id path string true "Session ID"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) ExportSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	format := c.DefaultQuery("format", "xlsx")
	var (
		data        []byte
		err         error
		contentType string
		filename    string
	)
	switch format {
	case "xlsx":
		data, err = h.exportService.ExportSessionToExcel(c.Request.Context(), sessionID)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "session-" + sessionID + ".xlsx"
	case "csv":
		data, err = h.exportService.ExportSessionToCSV(c.Request.Context(), sessionID)
		contentType = "text/csv"
		filename = "session-" + sessionID + ".csv"
	default:
		h.RespondWithError(c, http.StatusBadRequest, "Unsupported export format", nil, format)
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

// CloseSession tears the session down without submitting
// @Summary Close session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	if err := h.deliveryService.CloseSession(c.Request.Context(), sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Session closed", nil)
}

// ===== HELPERS =====

func (h *SessionHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return 0
	}
	return uint(id)
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var blocked *delivery.ValidationBlockedError
	if errors.As(err, &blocked) {
		h.LogWarn(c, "Submission blocked by unanswered questions",
			"missing_count", blocked.MissingCount)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Required questions are unanswered",
			Code:    "validation_blocked",
			Details: map[string]interface{}{
				"missing_count": blocked.MissingCount,
				"first_index":   blocked.FirstIndex,
				"question_ids":  blocked.QuestionIDs,
			},
		})
		return
	}

	var localInput *delivery.InvalidLocalInputError
	if errors.As(err, &localInput) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Answer rejected",
			Code:    "invalid_local_input",
			Details: map[string]interface{}{
				"question_id": localInput.QuestionID,
				"reason":      localInput.Reason,
			},
		})
		return
	}

	var rejected *delivery.SubmissionRejectedError
	if errors.As(err, &rejected) {
		h.LogError(c, err, "Submission rejected upstream")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Submission rejected, please retry",
			Code:    "submission_rejected",
		})
		return
	}

	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrSessionNotResumed):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No resumable session found",
		})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
		})
	case services.IsLoadError(err):
		h.LogError(c, err, "Assessment load failed")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Assessment could not be loaded, please retry",
			Code:    "load_error",
		})
	case errors.Is(err, delivery.ErrUnsupportedAnswer):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "This question type does not accept answers",
		})
	case errors.Is(err, delivery.ErrTypeMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Operation does not apply to this question type",
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
