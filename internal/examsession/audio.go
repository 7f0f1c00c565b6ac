package examsession

import (
	"time"

	"github.com/stemsi/exam-practice/internal/model"
)

// CurrentAudio returns the audio part at the current index, if any.
func CurrentAudio(s State) (model.AudioPart, bool) {
	part, ok := s.CurrentPart().(model.AudioPart)
	return part, ok
}

// CanPlay reports whether the current part's audio may start. Audio plays at
// most once per visit, and never again once the part has been left forward.
func CanPlay(s State) bool {
	if _, ok := CurrentAudio(s); !ok {
		return false
	}
	return s.AudioStatus == AudioReady &&
		!s.PlayedListeningParts.Has(s.CurrentPartIndex) &&
		!s.HasPlaybackStarted
}

// ResumePosition is the offset, in seconds, playback should start from:
// the last recorded progress minus the rewind buffer, floored at zero.
func ResumePosition(s State) float64 {
	part, ok := CurrentAudio(s)
	if !ok {
		return 0
	}
	return max(0, s.AudioProgress[part.AudioSource()]-model.AudioRewindBuffer.Seconds())
}

// LowTime reports whether the remaining time is under the warning threshold.
func LowTime(s State) bool {
	return s.Active() && time.Duration(s.TimeLeft)*time.Second < model.LowTimeWarning
}
