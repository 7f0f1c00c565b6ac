package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/model"
)

// Session is the runtime of one (user, exam type) exam session. All state
// changes go through Dispatch, which is serialized by mu, so the countdown
// goroutine and request handlers share a single dispatch queue.
type Session struct {
	userID   string
	examType model.ExamType

	mu        sync.Mutex
	state     examsession.State
	countdown *examsession.Countdown
	persist   *sessionPersistence
	subs      map[int]chan examsession.State
	nextSub   int
	closed    bool
	lastSeen  time.Time

	initMu      sync.Mutex
	initialized bool

	log zerolog.Logger
}

func newSession(userID string, examType model.ExamType, persist *sessionPersistence, log zerolog.Logger) *Session {
	return &Session{
		userID:   userID,
		examType: examType,
		state:    examsession.NewState(examType),
		persist:  persist,
		subs:     make(map[int]chan examsession.State),
		lastSeen: time.Now(),
		log: log.With().
			Str("user_id", userID).
			Str("exam_type", string(examType)).
			Logger(),
	}
}

// attachCountdown wires the session timer. onTimeUp runs on the countdown
// goroutine without the session lock held.
func (s *Session) attachCountdown(interval time.Duration, now func() time.Time, onTimeUp func()) {
	s.countdown = examsession.NewCountdown(interval, func() int {
		return s.Dispatch(examsession.TimerTick{Now: now()}).TimeLeft
	}, onTimeUp)
}

// initialize runs load until it succeeds once. Concurrent callers wait for
// the running attempt; a failed attempt leaves the session uninitialized.
func (s *Session) initialize(load func() error) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// State returns the current state.
func (s *Session) State() examsession.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies an action and returns the resulting state.
func (s *Session) Dispatch(a examsession.Action) examsession.State {
	st, _ := s.DispatchWith(func(examsession.State) examsession.Action { return a })
	return st
}

// DispatchWith builds the action from the current state while holding the
// dispatch lock, so check-then-act sequences cannot interleave. A nil action
// leaves the state untouched and reports false.
func (s *Session) DispatchWith(build func(examsession.State) examsession.Action) (examsession.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	if s.closed {
		return s.state, false
	}

	a := build(s.state)
	if a == nil {
		return s.state, false
	}

	s.state = examsession.Reduce(s.state, a)
	if _, tick := a.(examsession.TimerTick); !tick {
		s.log.Debug().Str("action", a.ActionType()).Msg("Dispatched")
	}

	s.persist.Sync(s.userID, s.state)
	s.reconcileTimer()
	s.broadcast()
	return s.state, true
}

// reconcileTimer keeps exactly one ticker running while the session is active.
func (s *Session) reconcileTimer() {
	if s.countdown == nil {
		return
	}
	if s.state.Active() {
		s.countdown.Start(s.state.TimeLeft)
	} else {
		s.countdown.Stop()
	}
}

// broadcast pushes the latest state to every subscriber. A subscriber that
// has not consumed the previous frame gets it replaced by the newer one.
func (s *Session) broadcast() {
	for _, ch := range s.subs {
		select {
		case ch <- s.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.state:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving the current state immediately and
// every later state. The cancel func must be called when done.
func (s *Session) Subscribe() (<-chan examsession.State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan examsession.State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// idleSince reports when the session last handled a dispatch.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// hasSubscribers reports whether any stream is attached.
func (s *Session) hasSubscribers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) > 0
}

// Close stops the timer and ends all subscriptions. Later dispatches are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.countdown != nil {
		s.countdown.Stop()
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
