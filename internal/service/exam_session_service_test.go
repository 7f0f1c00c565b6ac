package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exam-practice/internal/client"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/model"
)

const userID = "user-7"

func readingExam() model.Parts {
	return model.Parts{
		&model.ReadingPart1{
			ID: "rp1",
			Questions: []model.TrueFalseQuestion{
				{ID: "q1", CorrectAnswer: true},
				{ID: "q2", CorrectAnswer: false},
			},
		},
		&model.ReadingPart5{
			ID:        "rp5",
			Questions: []model.MultipleChoiceQuestion{{ID: "q3", CorrectAnswerIndex: 2}},
		},
	}
}

func listeningExam() model.Parts {
	return model.Parts{
		&model.ListeningPart2{ID: "lp2", AudioSrc: "/lp2.mp3",
			Questions: []model.MultipleChoiceQuestion{{ID: "m1", CorrectAnswerIndex: 1}}},
		&model.ListeningPart3{ID: "lp3", AudioSrc: "/lp3.mp3",
			Questions: []model.TrueFalseQuestion{{ID: "t1", CorrectAnswer: true}}},
	}
}

type harness struct {
	svc     *ExamSessionService
	store   *memoryStore
	queue   *memoryQueue
	content *stubContent
}

func newHarness(t *testing.T, parts model.Parts, tick time.Duration) *harness {
	t.Helper()
	h := &harness{
		store:   newMemoryStore(),
		queue:   &memoryQueue{},
		content: &stubContent{result: &client.FetchResult{Parts: parts}},
	}
	h.svc = NewExamSessionService(h.store, h.queue, h.content, tick, zerolog.Nop())
	t.Cleanup(h.svc.Shutdown)
	return h
}

func storeSnapshot(t *testing.T, store *memoryStore, st examsession.State) {
	t.Helper()
	raw, err := json.Marshal(st.Snapshot())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), userID, st.ExamType, raw))
}

func TestGetSessionFetchesOnce(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	ctx := context.Background()

	v, err := h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Len(t, v.ExamParts, 2)
	assert.Equal(t, 3900, v.TimeLeft)
	assert.Equal(t, 3, v.TotalQuestions)
	assert.NotNil(t, v.ExamStartTime)
	assert.True(t, h.store.has(userID, model.ExamTypeReading))

	_, err = h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Equal(t, 1, h.content.callCount())
}

func TestGetSessionInvalidExamType(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	_, err := h.svc.GetSession(context.Background(), userID, model.ExamType("speaking"))
	assert.ErrorIs(t, err, model.ErrInvalidExamType)
}

func TestAllCompletedStopsFetching(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	h.content.result = &client.FetchResult{AllCompleted: true}
	ctx := context.Background()

	v, err := h.svc.GetSession(ctx, userID, model.ExamTypeListening)
	require.NoError(t, err)
	assert.True(t, v.AreAllExamsCompleted)

	_, err = h.svc.GetSession(ctx, userID, model.ExamTypeListening)
	require.NoError(t, err)
	assert.Equal(t, 1, h.content.callCount())
	assert.False(t, h.store.has(userID, model.ExamTypeListening))
}

func TestFetchErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	h.content.err = errors.New("connection refused")
	ctx := context.Background()

	v, err := h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Contains(t, v.Error, "connection refused")
	assert.False(t, v.IsLoading)

	_, err = h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Equal(t, 1, h.content.callCount())

	// Restarting is how a user retries.
	h.content.mu.Lock()
	h.content.err = nil
	h.content.result = &client.FetchResult{Parts: readingExam()}
	h.content.mu.Unlock()

	require.NoError(t, h.svc.Restart(ctx, userID, model.ExamTypeReading))
	v, err = h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Empty(t, v.Error)
	assert.Len(t, v.ExamParts, 2)
	assert.Equal(t, 2, h.content.callCount())
}

func TestResumeFromSnapshotRecomputesTime(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return now }

	start := now.Add(-600 * time.Second)
	snap := examsession.NewState(model.ExamTypeListening)
	snap.ExamParts = listeningExam()
	snap.ExamStartTime = &start
	snap.TimeLeft = 2390
	snap.PlayedListeningParts = examsession.PartSet{0: {}}
	snap.CurrentPartIndex = 1
	snap.AllUserAnswers = model.Answers{"m1": model.IntAnswer(1)}
	storeSnapshot(t, h.store, snap)

	v, err := h.svc.GetSession(context.Background(), userID, model.ExamTypeListening)
	require.NoError(t, err)
	assert.Equal(t, 1800, v.TimeLeft)
	assert.Equal(t, 1, v.CurrentPartIndex)
	assert.True(t, v.PlayedListeningParts.Has(0))
	assert.Equal(t, model.IntAnswer(1), v.AllUserAnswers["m1"])
	assert.Equal(t, 0, h.content.callCount())
}

func TestCorruptSnapshotFallsBackToFetch(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	require.NoError(t, h.store.Save(context.Background(), userID, model.ExamTypeReading, []byte(`{not json`)))

	v, err := h.svc.GetSession(context.Background(), userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Len(t, v.ExamParts, 2)
	assert.Equal(t, 1, h.content.callCount())

	raw, err := h.store.Get(context.Background(), userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
}

func TestSnapshotReadFailureKeepsStoredSession(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return now }
	ctx := context.Background()

	start := now.Add(-3000 * time.Second)
	snap := examsession.NewState(model.ExamTypeReading)
	snap.ExamParts = readingExam()
	snap.ExamStartTime = &start
	snap.TimeLeft = 900
	snap.AllUserAnswers = model.Answers{"q1": model.BoolAnswer(true)}
	storeSnapshot(t, h.store, snap)
	before := h.store.raw(userID, model.ExamTypeReading)

	h.store.failReads(errors.New("i/o timeout"))
	_, err := h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.ErrorIs(t, err, ErrSnapshotUnavailable)
	_, err = h.svc.Answer(ctx, userID, model.ExamTypeReading, "q2", model.BoolAnswer(false))
	require.ErrorIs(t, err, ErrSnapshotUnavailable)
	assert.Equal(t, 0, h.content.callCount())
	assert.Equal(t, before, h.store.raw(userID, model.ExamTypeReading))

	// The store recovers and the next request resumes the session.
	h.store.failReads(nil)
	v, err := h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Equal(t, 900, v.TimeLeft)
	assert.Equal(t, model.BoolAnswer(true), v.AllUserAnswers["q1"])
	assert.Equal(t, 0, h.content.callCount())
}

func TestReadingScenarioSubmit(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	ctx := context.Background()

	_, err := h.svc.GetSession(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)

	_, err = h.svc.Answer(ctx, userID, model.ExamTypeReading, "q1", model.BoolAnswer(true))
	require.NoError(t, err)
	v, err := h.svc.Answer(ctx, userID, model.ExamTypeReading, "q2", model.BoolAnswer(true))
	require.NoError(t, err)
	assert.True(t, v.CurrentPartAnswered)

	v, err = h.svc.Submit(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.True(t, v.IsSubmitted)
	assert.Equal(t, 1, v.Score)
	require.NotNil(t, v.Results)
	assert.True(t, v.Results.Parts[0].Questions[0].IsCorrect)
	assert.False(t, v.Results.Parts[0].Questions[1].IsCorrect)

	subs := h.queue.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, userID, subs[0].UserID)
	assert.Equal(t, model.ExamTypeReading, subs[0].ExamType)
	assert.Equal(t, 1, subs[0].TotalScore)
	assert.Equal(t, 3, subs[0].TotalQuestions)
	assert.Len(t, subs[0].Parts, 2)
	assert.False(t, h.store.has(userID, model.ExamTypeReading))

	// Frozen after submission: answers ignored, nothing persisted again.
	saves := h.store.saveCount()
	v, err = h.svc.Answer(ctx, userID, model.ExamTypeReading, "q2", model.BoolAnswer(false))
	require.NoError(t, err)
	assert.Equal(t, model.BoolAnswer(true), v.AllUserAnswers["q2"])
	assert.Equal(t, saves, h.store.saveCount())
	assert.False(t, h.store.has(userID, model.ExamTypeReading))

	// A second submit returns the same results and queues nothing.
	v, err = h.svc.Submit(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Score)
	assert.Len(t, h.queue.submissions(), 1)
}

func TestAnswerRequiresValue(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	_, err := h.svc.Answer(context.Background(), userID, model.ExamTypeReading, "q1", model.Answer{})
	assert.ErrorIs(t, err, ErrMissingAnswer)
}

func TestEmptyStringCountsAsUnanswered(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	ctx := context.Background()

	_, err := h.svc.Answer(ctx, userID, model.ExamTypeReading, "q1", model.BoolAnswer(true))
	require.NoError(t, err)
	v, err := h.svc.Answer(ctx, userID, model.ExamTypeReading, "q2", model.StringAnswer(""))
	require.NoError(t, err)
	assert.False(t, v.CurrentPartAnswered)
}

func TestNavigateBounds(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	ctx := context.Background()

	_, err := h.svc.Navigate(ctx, userID, model.ExamTypeReading, 2)
	assert.ErrorIs(t, err, ErrPartIndexOutOfRange)
	_, err = h.svc.Navigate(ctx, userID, model.ExamTypeReading, -1)
	assert.ErrorIs(t, err, ErrPartIndexOutOfRange)

	v, err := h.svc.Navigate(ctx, userID, model.ExamTypeReading, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v.CurrentPartIndex)
	assert.Empty(t, v.PlayedListeningParts)
}

func TestPlayGate(t *testing.T) {
	h := newHarness(t, listeningExam(), time.Hour)
	ctx := context.Background()
	lt := model.ExamTypeListening

	play, err := h.svc.Play(ctx, userID, lt)
	require.NoError(t, err)
	assert.False(t, play.Allowed, "audio not ready yet")

	_, err = h.svc.SetAudioStatus(ctx, userID, lt, examsession.AudioReady)
	require.NoError(t, err)
	_, err = h.svc.UpdateAudioProgress(ctx, userID, lt, "/lp2.mp3", 12)
	require.NoError(t, err)

	play, err = h.svc.Play(ctx, userID, lt)
	require.NoError(t, err)
	assert.True(t, play.Allowed)
	assert.Equal(t, 7.0, play.ResumeAt)

	play, err = h.svc.Play(ctx, userID, lt)
	require.NoError(t, err)
	assert.False(t, play.Allowed, "only one play per visit")

	// Leave forward and come back: the part stays locked.
	_, err = h.svc.Navigate(ctx, userID, lt, 1)
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, userID, lt, 0)
	require.NoError(t, err)
	v, err := h.svc.SetAudioStatus(ctx, userID, lt, examsession.AudioReady)
	require.NoError(t, err)
	assert.False(t, v.CanPlayAudio)

	_, err = h.svc.SetAudioStatus(ctx, userID, lt, examsession.AudioStatus("buffering"))
	assert.ErrorIs(t, err, ErrInvalidAudioStatus)
}

func TestTimeUpSubmitsOnce(t *testing.T) {
	h := newHarness(t, nil, 5*time.Millisecond)
	now := time.Now()
	h.svc.now = func() time.Time { return now }

	start := now.Add(-(2400 - 2) * time.Second)
	snap := examsession.NewState(model.ExamTypeListening)
	snap.ExamParts = listeningExam()
	snap.ExamStartTime = &start
	snap.AllUserAnswers = model.Answers{"m1": model.IntAnswer(1)}
	storeSnapshot(t, h.store, snap)

	v, err := h.svc.GetSession(context.Background(), userID, model.ExamTypeListening)
	require.NoError(t, err)
	assert.LessOrEqual(t, v.TimeLeft, 2)

	require.Eventually(t, func() bool {
		return len(h.queue.submissions()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	v, err = h.svc.GetSession(context.Background(), userID, model.ExamTypeListening)
	require.NoError(t, err)
	assert.True(t, v.IsSubmitted)
	assert.Equal(t, 0, v.TimeLeft)
	assert.Equal(t, 1, v.Score)
	require.NotNil(t, v.TimeTaken)
	assert.Equal(t, 2400, *v.TimeTaken)

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, h.queue.submissions(), 1)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	h := newHarness(t, readingExam(), time.Hour)
	ctx := context.Background()

	ch, cancel, err := h.svc.Subscribe(ctx, userID, model.ExamTypeReading)
	require.NoError(t, err)
	defer cancel()

	first := <-ch
	assert.Len(t, first.ExamParts, 2)

	_, err = h.svc.Answer(ctx, userID, model.ExamTypeReading, "q1", model.BoolAnswer(true))
	require.NoError(t, err)

	select {
	case st := <-ch:
		assert.Equal(t, model.BoolAnswer(true), st.AllUserAnswers["q1"])
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	require.NoError(t, h.svc.Restart(ctx, userID, model.ExamTypeReading))
	_, open := <-ch
	assert.False(t, open)
}

func TestEvictIdle(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	h.content.err = errors.New("down")

	_, err := h.svc.GetSession(context.Background(), userID, model.ExamTypeReading)
	require.NoError(t, err)

	assert.Equal(t, 0, h.svc.EvictIdle(time.Hour))
	assert.Equal(t, 1, h.svc.EvictIdle(-time.Second))
}
