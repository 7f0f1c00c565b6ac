package model

// AnswerRequest is the payload for answering a single question.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=128"`
	Answer     Answer `json:"answer"`
}

// NavigateRequest moves the session to another part.
type NavigateRequest struct {
	NextIndex *int `json:"next_index" binding:"required,min=0"`
}

// AudioProgressRequest reports the playback position of an audio source.
type AudioProgressRequest struct {
	Src  string  `json:"src" binding:"required"`
	Time float64 `json:"time" binding:"min=0"`
}

// AudioStatusRequest reports the load state of the current part's audio.
type AudioStatusRequest struct {
	Status string `json:"status" binding:"required,audio_status"`
}

// PlayResponse tells the client whether it may start playback and from where.
type PlayResponse struct {
	Allowed  bool    `json:"allowed"`
	ResumeAt float64 `json:"resume_at"`
}

// SessionURI binds the exam type path segment.
type SessionURI struct {
	ExamType string `uri:"exam_type" binding:"required,exam_type"`
}
