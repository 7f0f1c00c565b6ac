package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/middleware"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/response"
	"github.com/stemsi/exam-practice/internal/service"
	"github.com/stemsi/exam-practice/internal/validator"
)

// SessionHandler exposes exam session actions over REST.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// sessionTarget resolves the caller and the exam type path segment.
// It writes the error response itself and reports false on failure.
func sessionTarget(c *gin.Context) (string, model.ExamType, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return "", "", false
	}

	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidExamType)
		return "", "", false
	}
	return userID, model.ExamType(uri.ExamType), true
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Session action failed")
	}
	_ = c.Error(err)
	response.Fail(c, status, code)
}

func (h *SessionHandler) respond(c *gin.Context, view *service.SessionView, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetSession godoc
// GET /api/v1/sessions/:exam_type
// Creates or resumes the session. The first call fetches the exam content.
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}
	view, err := h.sessionService.GetSession(c.Request.Context(), userID, examType)
	h.respond(c, view, err)
}

// Restart godoc
// DELETE /api/v1/sessions/:exam_type
// Drops the live session and its snapshot.
func (h *SessionHandler) Restart(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}
	if err := h.sessionService.Restart(c.Request.Context(), userID, examType); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"restarted": true})
}

// Answer godoc
// POST /api/v1/sessions/:exam_type/answers
func (h *SessionHandler) Answer(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Answer(c.Request.Context(), userID, examType, req.QuestionID, req.Answer)
	h.respond(c, view, err)
}

// Navigate godoc
// POST /api/v1/sessions/:exam_type/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Navigate(c.Request.Context(), userID, examType, *req.NextIndex)
	h.respond(c, view, err)
}

// AudioProgress godoc
// POST /api/v1/sessions/:exam_type/audio/progress
func (h *SessionHandler) AudioProgress(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}

	var req model.AudioProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.UpdateAudioProgress(c.Request.Context(), userID, examType, req.Src, req.Time)
	h.respond(c, view, err)
}

// AudioStatus godoc
// POST /api/v1/sessions/:exam_type/audio/status
func (h *SessionHandler) AudioStatus(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}

	var req model.AudioStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.SetAudioStatus(c.Request.Context(), userID, examType, examsession.AudioStatus(req.Status))
	h.respond(c, view, err)
}

// Play godoc
// POST /api/v1/sessions/:exam_type/audio/play
// Asks to start the current part's audio; returns whether it may play and
// the position to resume from.
func (h *SessionHandler) Play(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}

	res, err := h.sessionService.Play(c.Request.Context(), userID, examType)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Submit godoc
// POST /api/v1/sessions/:exam_type/submit
// Grades the exam and returns the view with per-question results.
func (h *SessionHandler) Submit(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}
	view, err := h.sessionService.Submit(c.Request.Context(), userID, examType)
	h.respond(c, view, err)
}
