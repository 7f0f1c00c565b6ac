package model

// QuestionResult is one row of the per-question report.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	UserAnswer    Answer `json:"userAnswer"`
	CorrectAnswer Answer `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// PartResult groups the report rows of one exam part.
type PartResult struct {
	PartID    string           `json:"partId"`
	Questions []QuestionResult `json:"questions"`
}

// Submission is the performance payload sent to the backend's save-exam endpoint.
type Submission struct {
	ID                 string       `json:"submissionId,omitempty"`
	UserID             string       `json:"userId"`
	ExamType           ExamType     `json:"examType"`
	TotalScore         int          `json:"totalScore"`
	TotalQuestions     int          `json:"totalQuestions"`
	TimeTakenInSeconds int          `json:"timeTakenInSeconds"`
	Parts              []PartResult `json:"parts"`
}
