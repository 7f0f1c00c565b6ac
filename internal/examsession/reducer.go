// Package examsession holds the exam session state machine: a pure reducer
// over State, the audio playback gate and the countdown timer.
package examsession

import (
	"math"
	"time"

	"github.com/stemsi/exam-practice/internal/model"
)

// Reduce applies an action to the state and returns the next state.
// It has no side effects; unknown actions return the state unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case FetchStart:
		s.IsLoading = true
		s.Error = ""
		return s

	case FetchSuccess:
		at := a.At
		s.IsLoading = false
		s.ExamParts = a.Parts
		s.TimeLeft = a.TotalTime
		s.ExamStartTime = &at
		return s

	case FetchAllCompleted:
		s.IsLoading = false
		s.AreAllExamsCompleted = true
		return s

	case FetchError:
		s.IsLoading = false
		s.Error = a.Message
		return s

	case LoadFromStorage:
		return loadFromStorage(a)

	case AnswerQuestion:
		if s.IsSubmitted {
			return s
		}
		answers := s.AllUserAnswers.Clone()
		answers[a.QuestionID] = a.Answer
		s.AllUserAnswers = answers
		return s

	case NavigatePart:
		if a.NextIndex > a.PreviousIndex {
			if left := s.ExamParts.At(a.PreviousIndex); left != nil && left.PartType().IsListening() {
				s.PlayedListeningParts = s.PlayedListeningParts.With(a.PreviousIndex)
			}
		}
		s.CurrentPartIndex = a.NextIndex
		s.AudioStatus = AudioLoading
		s.HasPlaybackStarted = false
		return s

	case SubmitExam:
		taken := a.TimeTaken
		s.IsSubmitted = true
		s.Score = a.Score
		s.TimeTaken = &taken
		return s

	case UpdateAudioProgress:
		if a.Time <= s.AudioProgress[a.Src] {
			return s
		}
		progress := make(map[string]float64, len(s.AudioProgress)+1)
		for k, v := range s.AudioProgress {
			progress[k] = v
		}
		progress[a.Src] = a.Time
		s.AudioProgress = progress
		return s

	case SetAudioStatus:
		s.AudioStatus = a.Status
		return s

	case SetHasPlaybackStarted:
		s.HasPlaybackStarted = a.Started
		return s

	case TimerTick:
		left := s.TimeLeft - 1
		if total := s.ExamType.TotalTime(); !a.Now.IsZero() && s.ExamStartTime != nil && total > 0 {
			left = min(left, remainingAt(total, *s.ExamStartTime, a.Now))
		}
		s.TimeLeft = max(0, left)
		return s
	}

	return s
}

// loadFromStorage replaces the state with the snapshot, rebuilding empty
// collections and reconciling the remaining time against the wall clock.
func loadFromStorage(a LoadFromStorage) State {
	s := a.Snapshot
	if s.PlayedListeningParts == nil {
		s.PlayedListeningParts = PartSet{}
	}
	if s.AllUserAnswers == nil {
		s.AllUserAnswers = model.Answers{}
	}
	if s.AudioProgress == nil {
		s.AudioProgress = map[string]float64{}
	}
	if s.ExamParts == nil {
		s.ExamParts = model.Parts{}
	}
	if s.AudioStatus == "" {
		s.AudioStatus = AudioLoading
	}
	s.HasPlaybackStarted = false

	if s.ExamStartTime != nil {
		s.TimeLeft = remainingAt(a.TotalTime, *s.ExamStartTime, a.Now)
	}
	return s
}

// remainingAt is the time left at now for an exam started at start. Clock
// skew that puts now before start counts as no time elapsed.
func remainingAt(total int, start, now time.Time) int {
	elapsed := max(0, int(math.Floor(now.Sub(start).Seconds())))
	return max(0, total-elapsed)
}
