package examsession

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/stemsi/exam-practice/internal/model"
)

// AudioStatus is the load state of the current part's audio element.
type AudioStatus string

const (
	AudioLoading AudioStatus = "loading"
	AudioReady   AudioStatus = "ready"
	AudioError   AudioStatus = "error"
)

// Valid reports whether s is a known audio status.
func (s AudioStatus) Valid() bool {
	switch s {
	case AudioLoading, AudioReady, AudioError:
		return true
	}
	return false
}

// PartSet is a set of part indices. It encodes as a sorted JSON array.
type PartSet map[int]struct{}

// Has reports whether i is in the set.
func (s PartSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// With returns a copy of the set with i added. The receiver is not modified.
func (s PartSet) With(i int) PartSet {
	out := make(PartSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[i] = struct{}{}
	return out
}

// Sorted returns the members in ascending order.
func (s PartSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (s PartSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *PartSet) UnmarshalJSON(data []byte) error {
	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	set := make(PartSet, len(list))
	for _, i := range list {
		set[i] = struct{}{}
	}
	*s = set
	return nil
}

// State is the complete state of one exam session. Values are treated as
// immutable: the reducer always returns a new State and copies maps before
// writing to them.
type State struct {
	ExamType             model.ExamType     `json:"examType"`
	IsLoading            bool               `json:"isLoading"`
	Error                string             `json:"error,omitempty"`
	ExamParts            model.Parts        `json:"examParts"`
	AllUserAnswers       model.Answers      `json:"allUserAnswers"`
	IsSubmitted          bool               `json:"isSubmitted"`
	Score                int                `json:"score"`
	PlayedListeningParts PartSet            `json:"playedListeningParts"`
	AudioProgress        map[string]float64 `json:"audioProgress"`
	AreAllExamsCompleted bool               `json:"areAllExamsCompleted"`
	CurrentPartIndex     int                `json:"currentPartIndex"`
	AudioStatus          AudioStatus        `json:"audioStatus"`
	HasPlaybackStarted   bool               `json:"hasPlaybackStarted"`
	TimeLeft             int                `json:"timeLeft"`
	ExamStartTime        *time.Time         `json:"examStartTime,omitempty"`
	TimeTaken            *int               `json:"timeTaken,omitempty"`
}

// NewState returns the fresh state a session starts from.
func NewState(examType model.ExamType) State {
	return State{
		ExamType:             examType,
		ExamParts:            model.Parts{},
		AllUserAnswers:       model.Answers{},
		PlayedListeningParts: PartSet{},
		AudioProgress:        map[string]float64{},
		AudioStatus:          AudioLoading,
		TimeLeft:             examType.TotalTime(),
	}
}

// CurrentPart returns the part at CurrentPartIndex, or nil.
func (s State) CurrentPart() model.ExamPart {
	return s.ExamParts.At(s.CurrentPartIndex)
}

// Active reports whether the countdown should be running.
func (s State) Active() bool {
	return len(s.ExamParts) > 0 && !s.IsSubmitted && !s.AreAllExamsCompleted
}

// Snapshot returns the persistable form of the state: playback is never
// considered started in a stored copy.
func (s State) Snapshot() State {
	snap := s
	snap.HasPlaybackStarted = false
	if snap.PlayedListeningParts == nil {
		snap.PlayedListeningParts = PartSet{}
	}
	return snap
}

// DecodeSnapshot parses a persisted snapshot.
func DecodeSnapshot(data []byte) (State, error) {
	var snap State
	if err := json.Unmarshal(data, &snap); err != nil {
		return State{}, err
	}
	return snap, nil
}
