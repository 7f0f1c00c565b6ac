package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AnswerKind tags the dynamic type held by an Answer.
type AnswerKind uint8

const (
	AnswerNone AnswerKind = iota
	AnswerBool
	AnswerInt
	AnswerString
)

// Answer is an untyped answer value: boolean, integer index or string key.
// The zero value is "no answer" and never equals any correct answer.
type Answer struct {
	kind AnswerKind
	b    bool
	i    int
	s    string
}

// BoolAnswer wraps a true/false or yes/no answer.
func BoolAnswer(v bool) Answer { return Answer{kind: AnswerBool, b: v} }

// IntAnswer wraps a multiple-choice option index.
func IntAnswer(v int) Answer { return Answer{kind: AnswerInt, i: v} }

// StringAnswer wraps a speaker or advertisement key.
func StringAnswer(v string) Answer { return Answer{kind: AnswerString, s: v} }

// IsZero reports whether the answer is absent.
func (a Answer) IsZero() bool { return a.kind == AnswerNone }

// IsBlank reports whether the answer counts as unanswered for navigation:
// absent, or an empty string.
func (a Answer) IsBlank() bool {
	return a.kind == AnswerNone || (a.kind == AnswerString && a.s == "")
}

// Equal is strict equality: same kind and same value. Absent never matches.
func (a Answer) Equal(other Answer) bool {
	if a.kind == AnswerNone || a.kind != other.kind {
		return false
	}
	switch a.kind {
	case AnswerBool:
		return a.b == other.b
	case AnswerInt:
		return a.i == other.i
	case AnswerString:
		return a.s == other.s
	}
	return false
}

// Value returns the underlying Go value, or nil when absent.
func (a Answer) Value() any {
	switch a.kind {
	case AnswerBool:
		return a.b
	case AnswerInt:
		return a.i
	case AnswerString:
		return a.s
	}
	return nil
}

func (a Answer) String() string {
	switch a.kind {
	case AnswerBool:
		return strconv.FormatBool(a.b)
	case AnswerInt:
		return strconv.Itoa(a.i)
	case AnswerString:
		return strconv.Quote(a.s)
	}
	return "<none>"
}

// MarshalJSON encodes the answer as its bare JSON value (null when absent).
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// UnmarshalJSON accepts a JSON bool, an integral number or a string.
// null decodes to the absent answer.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}

	switch data[0] {
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode bool answer: %w", err)
		}
		*a = BoolAnswer(v)
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode string answer: %w", err)
		}
		*a = StringAnswer(v)
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return fmt.Errorf("answer %s is not an option index", data)
		}
		*a = IntAnswer(int(v))
	}
	return nil
}

// Answers maps question IDs to the stored answer.
type Answers map[string]Answer

// Get returns the stored answer, or the absent answer.
func (m Answers) Get(questionID string) Answer {
	if m == nil {
		return Answer{}
	}
	return m[questionID]
}

// Clone returns a shallow copy safe for copy-on-write updates.
func (m Answers) Clone() Answers {
	out := make(Answers, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
