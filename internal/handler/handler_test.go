package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/client"
	"github.com/stemsi/exam-practice/internal/database"
	"github.com/stemsi/exam-practice/internal/middleware"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/repository"
	"github.com/stemsi/exam-practice/internal/response"
	"github.com/stemsi/exam-practice/internal/service"
	"github.com/stemsi/exam-practice/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readingExamJSON = `[
	{"id":"rp1","type":"reading-part-1","questions":[
		{"id":"q1","statement":"s1","correctAnswer":true,"explanation":""},
		{"id":"q2","statement":"s2","correctAnswer":false,"explanation":""}
	]},
	{"id":"rp5","type":"reading-part-5","questions":[
		{"id":"q3","question":"q","options":["a","b","c"],"correctAnswerIndex":2,"explanation":""}
	]}
]`

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) key(userID string, examType model.ExamType) string {
	return userID + ":" + string(examType)
}

func (m *memStore) Get(_ context.Context, userID string, examType model.ExamType) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[m.key(userID, examType)]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return raw, nil
}

func (m *memStore) Save(_ context.Context, userID string, examType model.ExamType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(userID, examType)] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, userID string, examType model.ExamType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.key(userID, examType))
	return nil
}

func (m *memStore) Exists(_ context.Context, userID string, examType model.ExamType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[m.key(userID, examType)]
	return ok, nil
}

type memQueue struct {
	mu   sync.Mutex
	subs []*model.Submission
}

func (q *memQueue) Enqueue(_ context.Context, sub *model.Submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, sub)
	return nil
}

type testEnv struct {
	router *gin.Engine
	auth   *service.AuthService
	svc    *service.ExamSessionService
	queue  *memQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(readingExamJSON))
	}))
	t.Cleanup(backend.Close)

	env := &testEnv{
		auth:  service.NewAuthService("test-secret"),
		queue: &memQueue{},
	}
	env.svc = service.NewExamSessionService(
		&memStore{data: make(map[string][]byte)},
		env.queue,
		client.NewContentClient(backend.URL, time.Second),
		time.Second,
		zerolog.Nop(),
	)
	t.Cleanup(env.svc.Shutdown)

	log := zerolog.Nop()
	env.router = gin.New()
	env.router.Use(response.RequestIDMiddleware())
	sessions := env.router.Group("/api/v1/sessions/:exam_type", middleware.RequireUserJWT(env.auth))
	h := NewSessionHandler(env.svc, log)
	sessions.GET("", h.GetSession)
	sessions.DELETE("", h.Restart)
	sessions.POST("/answers", h.Answer)
	sessions.POST("/navigate", h.Navigate)
	sessions.POST("/audio/status", h.AudioStatus)
	sessions.POST("/audio/play", h.Play)
	sessions.POST("/submit", h.Submit)

	ws := NewWSHandler(env.svc, log, nil)
	env.router.GET("/ws/v1/sessions/:exam_type/stream", middleware.RequireUserWSAuth(env.auth), ws.SessionStream)

	env.router.GET("/health", NewHealthHandler(map[string]database.Pinger{"ok": okPinger{}}).Health)
	return env
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

type viewBody struct {
	ExamParts        []map[string]any `json:"examParts"`
	AllUserAnswers   map[string]any   `json:"allUserAnswers"`
	CurrentPartIndex int              `json:"currentPartIndex"`
	IsSubmitted      bool             `json:"isSubmitted"`
	Score            int              `json:"score"`
	TimeLeft         int              `json:"timeLeft"`
	TotalQuestions   int              `json:"totalQuestions"`
	Results          *struct {
		Score          int `json:"score"`
		TotalQuestions int `json:"totalQuestions"`
	} `json:"results"`
}

func decodeView(t *testing.T, env envelope) viewBody {
	t.Helper()
	var v viewBody
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestGetSession(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/reading", "u1", nil)
	require.Equal(t, http.StatusOK, code)

	v := decodeView(t, body)
	require.Len(t, v.ExamParts, 2)
	assert.Equal(t, "reading-part-1", v.ExamParts[0]["type"])
	assert.Equal(t, 3, v.TotalQuestions)
	assert.Equal(t, 3900, v.TimeLeft)
	assert.Nil(t, v.Results)
}

func TestSessionRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/reading", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.ErrTokenRequired, body.Error.Code)
}

func TestInvalidExamType(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/writing", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrInvalidExamType, body.Error.Code)
}

func TestAnswerNavigateSubmit(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/sessions/reading"

	code, _ := env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q1", "answer": true})
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q2", "answer": true})
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodPost, base+"/navigate", "u1", map[string]any{"next_index": 1})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decodeView(t, body).CurrentPartIndex)

	code, _ = env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q3", "answer": 1})
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, base+"/submit", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	v := decodeView(t, body)
	assert.True(t, v.IsSubmitted)
	assert.Equal(t, 1, v.Score)
	require.NotNil(t, v.Results)
	assert.Equal(t, 3, v.Results.TotalQuestions)

	env.queue.mu.Lock()
	assert.Len(t, env.queue.subs, 1)
	env.queue.mu.Unlock()

	// Frozen after submission.
	code, body = env.do(t, http.MethodPost, base+"/navigate", "u1", map[string]any{"next_index": 0})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrSessionNotActive, body.Error.Code)
}

func TestAnswerValidation(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/sessions/reading"

	code, body := env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"answer": true})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "question_id")

	code, body = env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrMissingAnswer, body.Error.Code)

	code, body = env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q1", "answer": 1.5})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, body.Error.Code)
}

func TestNavigateOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodPost, "/api/v1/sessions/reading/navigate", "u1", map[string]any{"next_index": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, response.ErrPartOutOfRange, body.Error.Code)

	code, body = env.do(t, http.MethodPost, "/api/v1/sessions/reading/navigate", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "next_index is a required field", body.Error.Fields["next_index"])
}

func TestAudioStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodPost, "/api/v1/sessions/reading/audio/status", "u1", map[string]any{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, body.Error.Code)
	assert.Equal(t, "status must be loading, ready or error", body.Error.Fields["status"])
}

func TestPlayDeniedWithoutAudio(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodPost, "/api/v1/sessions/reading/audio/play", "u1", nil)
	require.Equal(t, http.StatusOK, code)

	var res model.PlayResponse
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.False(t, res.Allowed, "reading parts carry no audio")
}

func TestRestart(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/sessions/reading"

	env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q1", "answer": true})
	code, _ := env.do(t, http.MethodDelete, base, "u1", nil)
	require.Equal(t, http.StatusOK, code)

	_, body := env.do(t, http.MethodGet, base, "u1", nil)
	assert.Empty(t, decodeView(t, body).AllUserAnswers)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/v1/sessions/reading"

	env.do(t, http.MethodPost, base+"/answers", "u1", map[string]any{"question_id": "q1", "answer": true})
	_, body := env.do(t, http.MethodGet, base, "u2", nil)
	assert.Empty(t, decodeView(t, body).AllUserAnswers)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"status":"ok"`))

	r := gin.New()
	r.GET("/health", NewHealthHandler(map[string]database.Pinger{"redis": downPinger{}}).Health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
