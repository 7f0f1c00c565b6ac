package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/scoring"
)

var (
	// ErrPartIndexOutOfRange is returned when navigating outside the exam.
	ErrPartIndexOutOfRange = errors.New("part index out of range")
	// ErrSessionNotActive is returned for exam actions on a session without
	// loaded content, or one that has reached a terminal state.
	ErrSessionNotActive = errors.New("exam session is not active")
	// ErrInvalidAudioStatus is returned for an unknown audio status.
	ErrInvalidAudioStatus = errors.New("invalid audio status")
	// ErrMissingAnswer is returned when an answer carries no value.
	ErrMissingAnswer = errors.New("answer value is required")
	// ErrSnapshotUnavailable is returned when the snapshot store cannot be
	// read. The session is left uninitialized so a later call retries.
	ErrSnapshotUnavailable = errors.New("snapshot store unavailable")
)

// SubmissionQueue buffers finished exam reports for delivery to the backend.
type SubmissionQueue interface {
	Enqueue(ctx context.Context, sub *model.Submission) error
}

// SessionView is the state as presented to clients, plus derived fields.
type SessionView struct {
	examsession.State
	TotalQuestions      int             `json:"totalQuestions"`
	CurrentPartAnswered bool            `json:"currentPartAnswered"`
	CanPlayAudio        bool            `json:"canPlayAudio"`
	LowTime             bool            `json:"lowTime"`
	Results             *scoring.Result `json:"results,omitempty"`
}

// NewSessionView derives the client view of a state.
func NewSessionView(s examsession.State) SessionView {
	v := SessionView{
		State:               s,
		TotalQuestions:      scoring.TotalQuestions(s.ExamParts),
		CurrentPartAnswered: scoring.PartAnswered(s.CurrentPart(), s.AllUserAnswers),
		CanPlayAudio:        examsession.CanPlay(s),
		LowTime:             examsession.LowTime(s),
	}
	if s.IsSubmitted {
		res := scoring.Evaluate(s.ExamParts, s.AllUserAnswers)
		v.Results = &res
	}
	return v
}

type sessionKey struct {
	userID   string
	examType model.ExamType
}

// ExamSessionService owns the live exam sessions of this gateway instance.
type ExamSessionService struct {
	persist      *sessionPersistence
	fetch        *fetchCoordinator
	queue        SubmissionQueue
	tickInterval time.Duration
	now          func() time.Time
	log          zerolog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// NewExamSessionService creates a new ExamSessionService. tickInterval is the
// countdown period; one second in production.
func NewExamSessionService(
	store SnapshotStore,
	queue SubmissionQueue,
	content ContentFetcher,
	tickInterval time.Duration,
	log zerolog.Logger,
) *ExamSessionService {
	log = log.With().Str("component", "exam_session_service").Logger()
	persist := newSessionPersistence(store, log)
	return &ExamSessionService{
		persist:      persist,
		fetch:        newFetchCoordinator(content, persist, time.Now, log),
		queue:        queue,
		tickInterval: tickInterval,
		now:          time.Now,
		log:          log,
		sessions:     make(map[sessionKey]*Session),
	}
}

// session returns the live session, creating and initializing it on first
// use: a stored snapshot is resumed, otherwise content is fetched.
// Session I/O outlives the request that triggered it, so cancellation of ctx
// is not propagated.
func (s *ExamSessionService) session(ctx context.Context, userID string, examType model.ExamType) (*Session, error) {
	if !examType.Valid() {
		return nil, model.ErrInvalidExamType
	}
	ctx = context.WithoutCancel(ctx)

	key := sessionKey{userID: userID, examType: examType}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = newSession(userID, examType, s.persist, s.log)
		sess.attachCountdown(s.tickInterval, func() time.Time { return s.now() }, func() { s.timeUp(sess) })
		s.sessions[key] = sess
	}
	s.mu.Unlock()

	err := sess.initialize(func() error {
		snap, found, err := s.persist.Load(ctx, userID, examType)
		if err != nil {
			return err
		}
		if found {
			sess.Dispatch(examsession.LoadFromStorage{
				Snapshot:  snap,
				TotalTime: examType.TotalTime(),
				Now:       s.now(),
			})
			sess.log.Info().Int("time_left", sess.State().TimeLeft).Msg("Session resumed from snapshot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.fetch.Run(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession returns the session view, creating or resuming the session.
func (s *ExamSessionService) GetSession(ctx context.Context, userID string, examType model.ExamType) (*SessionView, error) {
	sess, err := s.session(ctx, userID, examType)
	if err != nil {
		return nil, err
	}
	v := NewSessionView(sess.State())
	return &v, nil
}

// Answer records the answer to one question. Answers after submission are ignored.
func (s *ExamSessionService) Answer(ctx context.Context, userID string, examType model.ExamType, questionID string, answer model.Answer) (*SessionView, error) {
	if answer.IsZero() {
		return nil, ErrMissingAnswer
	}
	return s.apply(ctx, userID, examType, func(st examsession.State) (examsession.Action, error) {
		if len(st.ExamParts) == 0 {
			return nil, ErrSessionNotActive
		}
		return examsession.AnswerQuestion{QuestionID: questionID, Answer: answer}, nil
	})
}

// Navigate moves to another part. Moving forward off a listening part
// forfeits that part's audio for good.
func (s *ExamSessionService) Navigate(ctx context.Context, userID string, examType model.ExamType, nextIndex int) (*SessionView, error) {
	return s.apply(ctx, userID, examType, func(st examsession.State) (examsession.Action, error) {
		if !st.Active() {
			return nil, ErrSessionNotActive
		}
		if nextIndex < 0 || nextIndex >= len(st.ExamParts) {
			return nil, fmt.Errorf("%w: %d of %d", ErrPartIndexOutOfRange, nextIndex, len(st.ExamParts))
		}
		return examsession.NavigatePart{NextIndex: nextIndex, PreviousIndex: st.CurrentPartIndex}, nil
	})
}

// UpdateAudioProgress records the playback position of an audio source.
func (s *ExamSessionService) UpdateAudioProgress(ctx context.Context, userID string, examType model.ExamType, src string, position float64) (*SessionView, error) {
	return s.apply(ctx, userID, examType, func(examsession.State) (examsession.Action, error) {
		return examsession.UpdateAudioProgress{Src: src, Time: position}, nil
	})
}

// SetAudioStatus records the load state of the current part's audio.
func (s *ExamSessionService) SetAudioStatus(ctx context.Context, userID string, examType model.ExamType, status examsession.AudioStatus) (*SessionView, error) {
	if !status.Valid() {
		return nil, ErrInvalidAudioStatus
	}
	return s.apply(ctx, userID, examType, func(examsession.State) (examsession.Action, error) {
		return examsession.SetAudioStatus{Status: status}, nil
	})
}

// Play asks to start the current part's audio. When allowed, playback is
// marked as started and the resume offset is returned.
func (s *ExamSessionService) Play(ctx context.Context, userID string, examType model.ExamType) (*model.PlayResponse, error) {
	sess, err := s.session(ctx, userID, examType)
	if err != nil {
		return nil, err
	}

	var resumeAt float64
	_, allowed := sess.DispatchWith(func(st examsession.State) examsession.Action {
		if !st.Active() || !examsession.CanPlay(st) {
			return nil
		}
		resumeAt = examsession.ResumePosition(st)
		return examsession.SetHasPlaybackStarted{Started: true}
	})

	return &model.PlayResponse{Allowed: allowed, ResumeAt: resumeAt}, nil
}

// Submit grades the exam, queues the report and ends the session. Submitting
// an already submitted session returns its results unchanged.
func (s *ExamSessionService) Submit(ctx context.Context, userID string, examType model.ExamType) (*SessionView, error) {
	sess, err := s.session(ctx, userID, examType)
	if err != nil {
		return nil, err
	}

	st := sess.State()
	if !st.IsSubmitted && !st.Active() {
		return nil, ErrSessionNotActive
	}

	st = s.submit(context.WithoutCancel(ctx), sess)
	v := NewSessionView(st)
	return &v, nil
}

// submit is the single submission path shared by Submit and time-up. It is
// idempotent: only the first call grades and queues a report.
func (s *ExamSessionService) submit(ctx context.Context, sess *Session) examsession.State {
	var sub *model.Submission

	st, submitted := sess.DispatchWith(func(st examsession.State) examsession.Action {
		if !st.Active() {
			return nil
		}
		total := st.ExamType.TotalTime()
		res := scoring.Evaluate(st.ExamParts, st.AllUserAnswers)
		sub = &model.Submission{
			UserID:             sess.userID,
			ExamType:           st.ExamType,
			TotalScore:         res.Score,
			TotalQuestions:     res.TotalQuestions,
			TimeTakenInSeconds: max(0, total-st.TimeLeft),
			Parts:              res.Parts,
		}
		return examsession.SubmitExam{Score: res.Score, TimeTaken: sub.TimeTakenInSeconds}
	})
	if !submitted {
		return st
	}

	if err := s.queue.Enqueue(ctx, sub); err != nil {
		sess.log.Error().Err(err).Msg("Failed to queue submission")
	}
	s.persist.Clear(ctx, sess.userID, sess.examType)

	sess.log.Info().
		Int("score", sub.TotalScore).
		Int("total", sub.TotalQuestions).
		Int("time_taken", sub.TimeTakenInSeconds).
		Msg("Exam submitted")
	return st
}

// timeUp runs on the countdown goroutine when the clock reaches zero.
func (s *ExamSessionService) timeUp(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	sess.log.Info().Msg("Time is up, submitting")
	s.submit(ctx, sess)
}

// Restart drops the live session and its snapshot. The next GetSession
// starts from scratch.
func (s *ExamSessionService) Restart(ctx context.Context, userID string, examType model.ExamType) error {
	if !examType.Valid() {
		return model.ErrInvalidExamType
	}

	key := sessionKey{userID: userID, examType: examType}
	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		sess.Close()
	}
	s.persist.Clear(ctx, userID, examType)
	return nil
}

// Subscribe streams session views until cancel is called or the session is
// closed.
func (s *ExamSessionService) Subscribe(ctx context.Context, userID string, examType model.ExamType) (<-chan examsession.State, func(), error) {
	sess, err := s.session(ctx, userID, examType)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.Subscribe()
	return ch, cancel, nil
}

// EvictIdle closes sessions that have seen no dispatch for maxIdle and have
// no attached stream. Active sessions keep ticking and are never idle.
// Returns how many sessions were evicted.
func (s *ExamSessionService) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var stale []*Session
	for key, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) && !sess.hasSubscribers() {
			stale = append(stale, sess)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Close()
	}
	return len(stale)
}

// Shutdown closes every live session. Snapshots are kept so sessions resume
// on the next start.
func (s *ExamSessionService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[sessionKey]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.log.Info().Int("sessions", len(sessions)).Msg("Exam sessions closed")
}

// apply resolves the session and dispatches the action built by build.
func (s *ExamSessionService) apply(
	ctx context.Context,
	userID string,
	examType model.ExamType,
	build func(examsession.State) (examsession.Action, error),
) (*SessionView, error) {
	sess, err := s.session(ctx, userID, examType)
	if err != nil {
		return nil, err
	}

	var buildErr error
	st, _ := sess.DispatchWith(func(st examsession.State) examsession.Action {
		a, err := build(st)
		if err != nil {
			buildErr = err
			return nil
		}
		return a
	})
	if buildErr != nil {
		return nil, buildErr
	}

	v := NewSessionView(st)
	return &v, nil
}
