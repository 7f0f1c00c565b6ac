package examsession

import (
	"time"

	"github.com/stemsi/exam-practice/internal/model"
)

// Action is a message dispatched to the reducer.
type Action interface {
	ActionType() string
}

type FetchStart struct{}

// FetchSuccess installs freshly fetched content and sets the countdown
// baseline. At is the instant the content arrived.
type FetchSuccess struct {
	Parts     model.Parts
	TotalTime int
	At        time.Time
}

type FetchAllCompleted struct{}

type FetchError struct {
	Message string
}

// LoadFromStorage replaces the state with a persisted snapshot. TimeLeft is
// recomputed from the snapshot's ExamStartTime relative to Now.
type LoadFromStorage struct {
	Snapshot  State
	TotalTime int
	Now       time.Time
}

type AnswerQuestion struct {
	QuestionID string
	Answer     model.Answer
}

type NavigatePart struct {
	NextIndex     int
	PreviousIndex int
}

type SubmitExam struct {
	Score     int
	TimeTaken int
}

type UpdateAudioProgress struct {
	Src  string
	Time float64
}

type SetAudioStatus struct {
	Status AudioStatus
}

type SetHasPlaybackStarted struct {
	Started bool
}

// TimerTick advances the countdown by one second. A non-zero Now also pulls
// TimeLeft down to what the exam start time allows, so missed ticks never
// extend the exam.
type TimerTick struct {
	Now time.Time
}

func (FetchStart) ActionType() string            { return "FETCH_START" }
func (FetchSuccess) ActionType() string          { return "FETCH_SUCCESS" }
func (FetchAllCompleted) ActionType() string     { return "FETCH_ALL_COMPLETED" }
func (FetchError) ActionType() string            { return "FETCH_ERROR" }
func (LoadFromStorage) ActionType() string       { return "LOAD_FROM_STORAGE" }
func (AnswerQuestion) ActionType() string        { return "ANSWER_QUESTION" }
func (NavigatePart) ActionType() string          { return "NAVIGATE_PART" }
func (SubmitExam) ActionType() string            { return "SUBMIT_EXAM" }
func (UpdateAudioProgress) ActionType() string   { return "UPDATE_AUDIO_PROGRESS" }
func (SetAudioStatus) ActionType() string        { return "SET_AUDIO_STATUS" }
func (SetHasPlaybackStarted) ActionType() string { return "SET_HAS_PLAYBACK_STARTED" }
func (TimerTick) ActionType() string             { return "TIMER_TICK" }
