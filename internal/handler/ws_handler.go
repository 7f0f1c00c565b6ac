package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/response"
	"github.com/stemsi/exam-practice/internal/service"
	"github.com/stemsi/exam-practice/internal/validator"
	ws "github.com/stemsi/exam-practice/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a session's state and accepts actions on the same socket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:exam_type/stream?token=...
// Pushes a state event on connect and after every change, including countdown
// ticks. Accepts {action, ...} envelopes for the same operations as REST.
func (h *WSHandler) SessionStream(c *gin.Context) {
	userID, examType, ok := sessionTarget(c)
	if !ok {
		return
	}

	// Resolve the session before upgrading so setup errors stay plain HTTP.
	states, unsubscribe, err := h.sessionService.Subscribe(c.Request.Context(), userID, examType)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageSize)

	wsLog := h.log.With().
		Str("request_id", response.GetRequestID(c)).
		Str("user_id", userID).
		Str("exam_type", string(examType)).
		Logger()
	wsLog.Info().Msg("Stream connected")

	replies := make(chan interface{}, 8)
	writerDone := make(chan struct{})
	go h.writeLoop(conn, wsLog, states, replies, writerDone)

	ctx := context.WithoutCancel(c.Request.Context())
	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.handleAction(ctx, wsLog, userID, examType, data)
		if reply == nil {
			continue
		}
		select {
		case replies <- reply:
		case <-writerDone:
			return
		}
	}

	close(replies)
	<-writerDone
}

// writeLoop is the only writer on conn. It exits when the session closes,
// the reader is done, or a write fails.
func (h *WSHandler) writeLoop(
	conn *websocket.Conn,
	log zerolog.Logger,
	states <-chan examsession.State,
	replies <-chan interface{},
	done chan<- struct{},
) {
	defer close(done)
	// Unblocks the reader when the writer gives up first.
	defer conn.Close()

	for {
		select {
		case st, ok := <-states:
			if !ok {
				_ = ws.WriteClose(conn, websocket.CloseNormalClosure, "session closed")
				return
			}
			if err := ws.WriteTyped(conn, ws.StateEvent{Event: ws.EventState, State: service.NewSessionView(st)}); err != nil {
				log.Debug().Err(err).Msg("State write failed")
				return
			}
		case reply, ok := <-replies:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, reply); err != nil {
				log.Debug().Err(err).Msg("Reply write failed")
				return
			}
		}
	}
}

// handleAction runs one client action. State changes reach the client through
// the state stream, so most actions reply only on error.
func (h *WSHandler) handleAction(
	ctx context.Context,
	log zerolog.Logger,
	userID string,
	examType model.ExamType,
	data []byte,
) interface{} {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errorEvent(response.ErrInvalidPayload, nil)
	}

	var err error
	switch env.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if fields := decodeAction(data, &req); fields != nil {
			return errorEvent(response.ErrValidation, fields)
		}
		_, err = h.sessionService.Answer(ctx, userID, examType, req.QuestionID, req.Answer)

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if fields := decodeAction(data, &req); fields != nil {
			return errorEvent(response.ErrValidation, fields)
		}
		_, err = h.sessionService.Navigate(ctx, userID, examType, *req.NextIndex)

	case ws.ActionAudioProgress:
		var req ws.AudioProgressRequest
		if fields := decodeAction(data, &req); fields != nil {
			return errorEvent(response.ErrValidation, fields)
		}
		_, err = h.sessionService.UpdateAudioProgress(ctx, userID, examType, req.Src, req.Time)

	case ws.ActionAudioStatus:
		var req ws.AudioStatusRequest
		if fields := decodeAction(data, &req); fields != nil {
			return errorEvent(response.ErrValidation, fields)
		}
		_, err = h.sessionService.SetAudioStatus(ctx, userID, examType, examsession.AudioStatus(req.Status))

	case ws.ActionPlay:
		var res *model.PlayResponse
		res, err = h.sessionService.Play(ctx, userID, examType)
		if err == nil {
			return ws.PlayEvent{Event: ws.EventPlay, PlayResponse: *res}
		}

	case ws.ActionSubmit:
		_, err = h.sessionService.Submit(ctx, userID, examType)

	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		return errorEvent(response.ErrUnknownAction, nil)
	}

	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("action", string(env.Action)).Msg("Action failed")
		}
		return errorEvent(code, nil)
	}
	return nil
}

func decodeAction(data []byte, dst interface{}) map[string]string {
	if err := json.Unmarshal(data, dst); err != nil {
		return validator.TranslateErrors(err)
	}
	return validator.Struct(dst)
}

func errorEvent(code response.ErrCode, fields map[string]string) ws.ErrorResponse {
	return ws.ErrorResponse{
		Event:  ws.EventError,
		Code:   string(code),
		Error:  response.GetMessage(code),
		Fields: fields,
	}
}
