package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PartType is the discriminant carried in every exam part's "type" field.
type PartType string

const (
	PartTypeListening1 PartType = "listening-part-1"
	PartTypeListening2 PartType = "listening-part-2"
	PartTypeListening3 PartType = "listening-part-3"
	PartTypeListening4 PartType = "listening-part-4"
	PartTypeReading1   PartType = "reading-part-1"
	PartTypeReading2   PartType = "reading-part-2"
	PartTypeReading3   PartType = "reading-part-3"
	PartTypeReading4   PartType = "reading-part-4"
	PartTypeReading5   PartType = "reading-part-5"
)

// ErrUnknownPartType is returned when decoding a part with an unrecognised discriminant.
var ErrUnknownPartType = errors.New("unknown exam part type")

// IsListening reports whether parts of this type carry a one-shot audio track.
func (t PartType) IsListening() bool {
	return strings.HasPrefix(string(t), "listening-")
}

// ExamPart is one scored section of an exam. Variants are always held as
// pointers (*ListeningPart1 ... *ReadingPart5).
type ExamPart interface {
	PartID() string
	PartType() PartType
}

// AudioPart is implemented by the listening variants.
type AudioPart interface {
	ExamPart
	AudioSource() string
}

// ─── Leaf questions ─────────────────────────────────────────────────

type TrueFalseQuestion struct {
	ID            string `json:"id"`
	Type          string `json:"type,omitempty"`
	Statement     string `json:"statement"`
	CorrectAnswer bool   `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

type MultipleChoiceQuestion struct {
	ID                 string   `json:"id"`
	Type               string   `json:"type,omitempty"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

type SpeakerAssignmentQuestion struct {
	ID            string `json:"id"`
	Type          string `json:"type,omitempty"`
	Statement     string `json:"statement"`
	CorrectAnswer string `json:"correctAnswer"` // speaker key
	Explanation   string `json:"explanation"`
}

// Situation is matched against an advertisement key (reading part 3).
type Situation struct {
	ID            string          `json:"id"`
	Number        json.RawMessage `json:"number,omitempty"`
	Description   string          `json:"description"`
	CorrectAnswer string          `json:"correctAnswer"`
	Explanation   string          `json:"explanation"`
}

// Opinion is judged yes/no against the topic (reading part 4).
type Opinion struct {
	ID            string          `json:"id"`
	Number        json.RawMessage `json:"number,omitempty"`
	Name          string          `json:"name"`
	Text          string          `json:"text"`
	CorrectAnswer bool            `json:"correctAnswer"`
	Explanation   string          `json:"explanation"`
}

// QuestionPair is the fixed [true-false, multiple-choice] tuple of a
// listening part 1 text block. It is encoded as a two-element JSON array.
type QuestionPair struct {
	TrueFalse      TrueFalseQuestion
	MultipleChoice MultipleChoiceQuestion
}

func (p QuestionPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.TrueFalse, p.MultipleChoice})
}

func (p *QuestionPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode question pair: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("question pair has %d entries, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.TrueFalse); err != nil {
		return fmt.Errorf("decode true-false question: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.MultipleChoice); err != nil {
		return fmt.Errorf("decode multiple-choice question: %w", err)
	}
	return nil
}

// ─── Shared content shapes ──────────────────────────────────────────

type DialogueLine struct {
	Speaker string `json:"speaker"`
	Line    string `json:"line"`
}

type DialogueSpeaker struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

type Speaker struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Gender string `json:"gender"`
}

type TextBlock struct {
	Context            string       `json:"context"`
	PreReadInstruction string       `json:"preReadInstruction"`
	SpeakerGender      string       `json:"speakerGender"`
	Transcript         string       `json:"transcript"`
	Questions          QuestionPair `json:"questions"`
}

type SpeakerExample struct {
	Statement     string `json:"statement"`
	CorrectAnswer string `json:"correctAnswer"`
}

type Blog struct {
	Title   string   `json:"title"`
	Author  string   `json:"author"`
	Date    string   `json:"date"`
	Content []string `json:"content"`
}

type ReadingText struct {
	Source    string                   `json:"source"`
	Title     string                   `json:"title"`
	Content   []string                 `json:"content"`
	Questions []MultipleChoiceQuestion `json:"questions"`
}

type Advertisement struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type RegulationParagraph struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
}

type Regulations struct {
	Title      string                `json:"title"`
	Paragraphs []RegulationParagraph `json:"paragraphs"`
}

// ─── Listening variants ─────────────────────────────────────────────

type ListeningPart1 struct {
	ID          string      `json:"id"`
	AudioSrc    string      `json:"audioSrc"`
	Instruction string      `json:"instruction"`
	Example     TextBlock   `json:"example"`
	TextBlocks  []TextBlock `json:"textBlocks"`
}

type ListeningPart2 struct {
	ID                 string                   `json:"id"`
	AudioSrc           string                   `json:"audioSrc"`
	Instruction        string                   `json:"instruction"`
	Context            string                   `json:"context"`
	PreReadInstruction string                   `json:"preReadInstruction"`
	SpeakerGender      string                   `json:"speakerGender"`
	Transcript         string                   `json:"transcript"`
	Questions          []MultipleChoiceQuestion `json:"questions"`
}

type ListeningPart3 struct {
	ID                 string              `json:"id"`
	AudioSrc           string              `json:"audioSrc"`
	Instruction        string              `json:"instruction"`
	Context            string              `json:"context"`
	PreReadInstruction string              `json:"preReadInstruction"`
	DialogueSpeakers   []DialogueSpeaker   `json:"dialogueSpeakers"`
	Transcript         []DialogueLine      `json:"transcript"`
	Questions          []TrueFalseQuestion `json:"questions"`
}

type ListeningPart4 struct {
	ID                 string                      `json:"id"`
	AudioSrc           string                      `json:"audioSrc"`
	Instruction        string                      `json:"instruction"`
	Context            string                      `json:"context"`
	PreReadInstruction string                      `json:"preReadInstruction"`
	Speakers           []Speaker                   `json:"speakers"`
	Transcript         []DialogueLine              `json:"transcript"`
	Example            SpeakerExample              `json:"example"`
	Questions          []SpeakerAssignmentQuestion `json:"questions"`
}

// ─── Reading variants ───────────────────────────────────────────────

type ReadingPart1 struct {
	ID          string              `json:"id"`
	Instruction string              `json:"instruction"`
	WorkingTime string              `json:"workingTime"`
	Blog        Blog                `json:"blog"`
	Example     TrueFalseQuestion   `json:"example"`
	Questions   []TrueFalseQuestion `json:"questions"`
}

type ReadingPart2 struct {
	ID          string        `json:"id"`
	Instruction string        `json:"instruction"`
	WorkingTime string        `json:"workingTime"`
	Texts       []ReadingText `json:"texts"`
}

type ReadingPart3 struct {
	ID             string          `json:"id"`
	Instruction    string          `json:"instruction"`
	WorkingTime    string          `json:"workingTime"`
	Example        Situation       `json:"example"`
	Situations     []Situation     `json:"situations"`
	Advertisements []Advertisement `json:"advertisements"`
}

type ReadingPart4 struct {
	ID           string    `json:"id"`
	Instruction  string    `json:"instruction"`
	WorkingTime  string    `json:"workingTime"`
	Topic        string    `json:"topic"`
	Introduction string    `json:"introduction"`
	Example      Opinion   `json:"example"`
	Opinions     []Opinion `json:"opinions"`
}

type ReadingPart5 struct {
	ID          string                   `json:"id"`
	Instruction string                   `json:"instruction"`
	WorkingTime string                   `json:"workingTime"`
	Regulations Regulations              `json:"regulations"`
	Questions   []MultipleChoiceQuestion `json:"questions"`
}

func (p *ListeningPart1) PartID() string { return p.ID }
func (p *ListeningPart2) PartID() string { return p.ID }
func (p *ListeningPart3) PartID() string { return p.ID }
func (p *ListeningPart4) PartID() string { return p.ID }
func (p *ReadingPart1) PartID() string   { return p.ID }
func (p *ReadingPart2) PartID() string   { return p.ID }
func (p *ReadingPart3) PartID() string   { return p.ID }
func (p *ReadingPart4) PartID() string   { return p.ID }
func (p *ReadingPart5) PartID() string   { return p.ID }

func (p *ListeningPart1) PartType() PartType { return PartTypeListening1 }
func (p *ListeningPart2) PartType() PartType { return PartTypeListening2 }
func (p *ListeningPart3) PartType() PartType { return PartTypeListening3 }
func (p *ListeningPart4) PartType() PartType { return PartTypeListening4 }
func (p *ReadingPart1) PartType() PartType   { return PartTypeReading1 }
func (p *ReadingPart2) PartType() PartType   { return PartTypeReading2 }
func (p *ReadingPart3) PartType() PartType   { return PartTypeReading3 }
func (p *ReadingPart4) PartType() PartType   { return PartTypeReading4 }
func (p *ReadingPart5) PartType() PartType   { return PartTypeReading5 }

func (p *ListeningPart1) AudioSource() string { return p.AudioSrc }
func (p *ListeningPart2) AudioSource() string { return p.AudioSrc }
func (p *ListeningPart3) AudioSource() string { return p.AudioSrc }
func (p *ListeningPart4) AudioSource() string { return p.AudioSrc }

// The variant structs carry no discriminant field of their own; each
// MarshalJSON re-attaches "type" so encoded parts decode back unchanged.

func (p ListeningPart1) MarshalJSON() ([]byte, error) {
	type plain ListeningPart1
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeListening1, plain(p)})
}

func (p ListeningPart2) MarshalJSON() ([]byte, error) {
	type plain ListeningPart2
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeListening2, plain(p)})
}

func (p ListeningPart3) MarshalJSON() ([]byte, error) {
	type plain ListeningPart3
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeListening3, plain(p)})
}

func (p ListeningPart4) MarshalJSON() ([]byte, error) {
	type plain ListeningPart4
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeListening4, plain(p)})
}

func (p ReadingPart1) MarshalJSON() ([]byte, error) {
	type plain ReadingPart1
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeReading1, plain(p)})
}

func (p ReadingPart2) MarshalJSON() ([]byte, error) {
	type plain ReadingPart2
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeReading2, plain(p)})
}

func (p ReadingPart3) MarshalJSON() ([]byte, error) {
	type plain ReadingPart3
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeReading3, plain(p)})
}

func (p ReadingPart4) MarshalJSON() ([]byte, error) {
	type plain ReadingPart4
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeReading4, plain(p)})
}

func (p ReadingPart5) MarshalJSON() ([]byte, error) {
	type plain ReadingPart5
	return json.Marshal(struct {
		Type PartType `json:"type"`
		plain
	}{PartTypeReading5, plain(p)})
}

// partEnvelope is used to peek at the discriminant before full parsing.
type partEnvelope struct {
	Type PartType `json:"type"`
}

// DecodePart decodes a single exam part, dispatching on its "type" field.
func DecodePart(data []byte) (ExamPart, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("peek part type: %w", err)
	}

	var part ExamPart
	switch env.Type {
	case PartTypeListening1:
		part = &ListeningPart1{}
	case PartTypeListening2:
		part = &ListeningPart2{}
	case PartTypeListening3:
		part = &ListeningPart3{}
	case PartTypeListening4:
		part = &ListeningPart4{}
	case PartTypeReading1:
		part = &ReadingPart1{}
	case PartTypeReading2:
		part = &ReadingPart2{}
	case PartTypeReading3:
		part = &ReadingPart3{}
	case PartTypeReading4:
		part = &ReadingPart4{}
	case PartTypeReading5:
		part = &ReadingPart5{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPartType, env.Type)
	}

	if err := json.Unmarshal(data, part); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return part, nil
}

// Parts is the ordered sequence of exam parts of one session.
type Parts []ExamPart

func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode exam parts: %w", err)
	}
	out := make(Parts, 0, len(raw))
	for i, r := range raw {
		part, err := DecodePart(r)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		out = append(out, part)
	}
	*ps = out
	return nil
}

// At returns the part at index i, or nil when out of range.
func (ps Parts) At(i int) ExamPart {
	if i < 0 || i >= len(ps) {
		return nil
	}
	return ps[i]
}
