package model

import (
	"errors"
	"time"
)

// ExamType enumerates the two practice exam flavours.
type ExamType string

const (
	ExamTypeListening ExamType = "listening"
	ExamTypeReading   ExamType = "reading"
)

// Fixed timing constants shared by the session runtime.
const (
	ListeningTotalTime = 40 * time.Minute
	ReadingTotalTime   = 65 * time.Minute

	// AudioRewindBuffer is subtracted from the last known audio position on resume.
	AudioRewindBuffer = 5 * time.Second

	// LowTimeWarning is a display threshold only.
	LowTimeWarning = 5 * time.Minute
)

// ErrInvalidExamType is returned when a path or payload names an unknown exam type.
var ErrInvalidExamType = errors.New("invalid exam type")

// ParseExamType validates a raw exam type string.
func ParseExamType(raw string) (ExamType, error) {
	switch ExamType(raw) {
	case ExamTypeListening, ExamTypeReading:
		return ExamType(raw), nil
	}
	return "", ErrInvalidExamType
}

// Valid reports whether t is one of the known exam types.
func (t ExamType) Valid() bool {
	_, err := ParseExamType(string(t))
	return err == nil
}

// TotalTime returns the allotted time for the exam type, in whole seconds.
// Unknown types get zero.
func (t ExamType) TotalTime() int {
	switch t {
	case ExamTypeListening:
		return int(ListeningTotalTime / time.Second)
	case ExamTypeReading:
		return int(ReadingTotalTime / time.Second)
	}
	return 0
}
