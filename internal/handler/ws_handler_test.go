package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exam-practice/internal/response"
	ws "github.com/stemsi/exam-practice/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event   ws.Event          `json:"event"`
	State   json.RawMessage   `json:"state"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
	Allowed bool              `json:"allowed"`
}

func dialStream(t *testing.T, env *testEnv, examType, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/v1/sessions/" + examType + "/stream?token=" + env.token(t, userID)
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextFrame skips state frames unless want is EventState.
func nextFrame(t *testing.T, conn *websocket.Conn, want ws.Event) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == want {
			return f
		}
	}
}

func TestStreamSendsStateOnConnect(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "reading", "u1")

	f := nextFrame(t, conn, ws.EventState)
	var v viewBody
	require.NoError(t, json.Unmarshal(f.State, &v))
	assert.Len(t, v.ExamParts, 2)
	assert.Equal(t, 3, v.TotalQuestions)
}

func TestStreamActions(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "reading", "u1")
	nextFrame(t, conn, ws.EventState)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	nextFrame(t, conn, ws.EventPong)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "answer", "question_id": "q1", "answer": true}))
	for {
		f := nextFrame(t, conn, ws.EventState)
		var v viewBody
		require.NoError(t, json.Unmarshal(f.State, &v))
		if _, ok := v.AllUserAnswers["q1"]; ok {
			assert.Equal(t, true, v.AllUserAnswers["q1"])
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "navigate", "next_index": 9}))
	f := nextFrame(t, conn, ws.EventError)
	assert.Equal(t, string(response.ErrPartOutOfRange), f.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "audio_status", "status": "paused"}))
	f = nextFrame(t, conn, ws.EventError)
	assert.Equal(t, string(response.ErrValidation), f.Code)
	assert.Contains(t, f.Fields, "status")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "play"}))
	f = nextFrame(t, conn, ws.EventPlay)
	assert.False(t, f.Allowed)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))
	f = nextFrame(t, conn, ws.EventError)
	assert.Equal(t, string(response.ErrUnknownAction), f.Code)
}

func TestStreamClosesOnRestart(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "reading", "u1")
	nextFrame(t, conn, ws.EventState)

	code, _ := env.do(t, http.MethodDelete, "/api/v1/sessions/reading", "u1", nil)
	require.Equal(t, http.StatusOK, code)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			return
		}
	}
}

func TestStreamRejectsBadExamType(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/sessions/writing/stream?token=" + env.token(t, "u1")
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
