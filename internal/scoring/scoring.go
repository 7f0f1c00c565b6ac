// Package scoring grades a set of exam parts against the user's answers.
//
// Every leaf question is visited exactly once by walk, so the score, the
// per-question report and the question count cannot drift apart.
package scoring

import (
	"github.com/stemsi/exam-practice/internal/model"
)

// Result is the outcome of one grading pass.
type Result struct {
	Score          int                `json:"score"`
	TotalQuestions int                `json:"totalQuestions"`
	Parts          []model.PartResult `json:"parts"`
}

// leaf is a scored question reduced to its id and correct answer.
type leaf struct {
	id      string
	correct model.Answer
}

// walk yields the scored questions of a part in display order.
// Example questions are never included.
func walk(part model.ExamPart, yield func(leaf)) {
	switch p := part.(type) {
	case *model.ListeningPart1:
		for _, block := range p.TextBlocks {
			tf, mc := block.Questions.TrueFalse, block.Questions.MultipleChoice
			yield(leaf{tf.ID, model.BoolAnswer(tf.CorrectAnswer)})
			yield(leaf{mc.ID, model.IntAnswer(mc.CorrectAnswerIndex)})
		}
	case *model.ListeningPart2:
		for _, q := range p.Questions {
			yield(leaf{q.ID, model.IntAnswer(q.CorrectAnswerIndex)})
		}
	case *model.ListeningPart3:
		for _, q := range p.Questions {
			yield(leaf{q.ID, model.BoolAnswer(q.CorrectAnswer)})
		}
	case *model.ListeningPart4:
		for _, q := range p.Questions {
			yield(leaf{q.ID, model.StringAnswer(q.CorrectAnswer)})
		}
	case *model.ReadingPart1:
		for _, q := range p.Questions {
			yield(leaf{q.ID, model.BoolAnswer(q.CorrectAnswer)})
		}
	case *model.ReadingPart2:
		for _, text := range p.Texts {
			for _, q := range text.Questions {
				yield(leaf{q.ID, model.IntAnswer(q.CorrectAnswerIndex)})
			}
		}
	case *model.ReadingPart3:
		for _, s := range p.Situations {
			yield(leaf{s.ID, model.StringAnswer(s.CorrectAnswer)})
		}
	case *model.ReadingPart4:
		for _, o := range p.Opinions {
			yield(leaf{o.ID, model.BoolAnswer(o.CorrectAnswer)})
		}
	case *model.ReadingPart5:
		for _, q := range p.Questions {
			yield(leaf{q.ID, model.IntAnswer(q.CorrectAnswerIndex)})
		}
	}
}

// Evaluate grades every scored question once and returns the score together
// with the per-part report. No partial credit; a missing answer is incorrect.
func Evaluate(parts []model.ExamPart, answers model.Answers) Result {
	res := Result{Parts: make([]model.PartResult, 0, len(parts))}

	for _, part := range parts {
		pr := model.PartResult{PartID: part.PartID(), Questions: []model.QuestionResult{}}
		walk(part, func(q leaf) {
			given := answers.Get(q.id)
			ok := given.Equal(q.correct)
			if ok {
				res.Score++
			}
			res.TotalQuestions++
			pr.Questions = append(pr.Questions, model.QuestionResult{
				QuestionID:    q.id,
				UserAnswer:    given,
				CorrectAnswer: q.correct,
				IsCorrect:     ok,
			})
		})
		res.Parts = append(res.Parts, pr)
	}

	return res
}

// QuestionCount returns the number of scored questions in a part.
func QuestionCount(part model.ExamPart) int {
	n := 0
	walk(part, func(leaf) { n++ })
	return n
}

// TotalQuestions sums QuestionCount over all parts.
func TotalQuestions(parts []model.ExamPart) int {
	total := 0
	for _, p := range parts {
		total += QuestionCount(p)
	}
	return total
}

// PartAnswered reports whether every scored question of the part has a
// non-blank answer. An empty string counts as unanswered.
func PartAnswered(part model.ExamPart, answers model.Answers) bool {
	if part == nil {
		return false
	}
	answered := true
	walk(part, func(q leaf) {
		if answers.Get(q.id).IsBlank() {
			answered = false
		}
	})
	return answered
}
