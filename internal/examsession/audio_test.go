package examsession

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exam-practice/internal/model"
)

func TestCanPlay(t *testing.T) {
	base := loaded(listeningParts(), model.ExamTypeListening)

	t.Run("audio still loading", func(t *testing.T) {
		assert.False(t, CanPlay(base))
	})

	ready := Reduce(base, SetAudioStatus{Status: AudioReady})

	t.Run("ready and unplayed", func(t *testing.T) {
		assert.True(t, CanPlay(ready))
	})

	t.Run("already started this visit", func(t *testing.T) {
		assert.False(t, CanPlay(Reduce(ready, SetHasPlaybackStarted{Started: true})))
	})

	t.Run("audio failed to load", func(t *testing.T) {
		assert.False(t, CanPlay(Reduce(ready, SetAudioStatus{Status: AudioError})))
	})

	t.Run("part left forward then revisited", func(t *testing.T) {
		s := Reduce(ready, NavigatePart{NextIndex: 1, PreviousIndex: 0})
		s = Reduce(s, NavigatePart{NextIndex: 0, PreviousIndex: 1})
		s = Reduce(s, SetAudioStatus{Status: AudioReady})
		assert.False(t, CanPlay(s))
	})

	t.Run("reading part has no audio", func(t *testing.T) {
		s := Reduce(ready, NavigatePart{NextIndex: 2, PreviousIndex: 1})
		s = Reduce(s, SetAudioStatus{Status: AudioReady})
		assert.False(t, CanPlay(s))
	})
}

func TestResumePosition(t *testing.T) {
	s := loaded(listeningParts(), model.ExamTypeListening)
	assert.Equal(t, 0.0, ResumePosition(s))

	s = Reduce(s, UpdateAudioProgress{Src: "/lp2.mp3", Time: 3})
	assert.Equal(t, 0.0, ResumePosition(s))

	s = Reduce(s, UpdateAudioProgress{Src: "/lp2.mp3", Time: 62.5})
	assert.Equal(t, 57.5, ResumePosition(s))
}

func TestLowTime(t *testing.T) {
	s := loaded(readingParts(), model.ExamTypeReading)
	assert.False(t, LowTime(s))

	s.TimeLeft = 299
	assert.True(t, LowTime(s))

	s = Reduce(s, SubmitExam{})
	assert.False(t, LowTime(s))
}
