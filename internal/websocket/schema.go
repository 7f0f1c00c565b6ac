package websocket

import (
	"github.com/stemsi/exam-practice/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer        Action = "answer"
	ActionNavigate      Action = "navigate"
	ActionAudioProgress Action = "audio_progress"
	ActionAudioStatus   Action = "audio_status"
	ActionPlay          Action = "play"
	ActionSubmit        Action = "submit"
	ActionPing          Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records one answer.
type AnswerRequest struct {
	Action Action `json:"action"`
	model.AnswerRequest
}

// NavigateRequest moves to another part.
type NavigateRequest struct {
	Action Action `json:"action"`
	model.NavigateRequest
}

// AudioProgressRequest reports the playback position.
type AudioProgressRequest struct {
	Action Action `json:"action"`
	model.AudioProgressRequest
}

// AudioStatusRequest reports the audio load state.
type AudioStatusRequest struct {
	Action Action `json:"action"`
	model.AudioStatusRequest
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventPlay  Event = "play"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// StateEvent carries the full session view. Sent on connect and after
// every change, including countdown ticks.
type StateEvent struct {
	Event Event       `json:"event"`
	State interface{} `json:"state"`
}

// PlayEvent answers a play action.
type PlayEvent struct {
	Event Event `json:"event"`
	model.PlayResponse
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
