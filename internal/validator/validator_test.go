package validator

import (
	"testing"

	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCustomTags(t *testing.T) {
	Setup()

	assert.Nil(t, Struct(&model.AudioStatusRequest{Status: "ready"}))
	assert.Nil(t, Struct(&model.SessionURI{ExamType: "reading"}))

	fields := Struct(&model.AudioStatusRequest{Status: "paused"})
	assert.Equal(t, "status must be loading, ready or error", fields["status"])

	fields = Struct(&model.SessionURI{ExamType: "writing"})
	assert.Contains(t, fields, "ExamType")
}

func TestBuiltinTranslation(t *testing.T) {
	Setup()

	fields := Struct(&model.NavigateRequest{})
	assert.Equal(t, "next_index is a required field", fields["next_index"])

	neg := -1
	fields = Struct(&model.NavigateRequest{NextIndex: &neg})
	assert.Contains(t, fields, "next_index")
}
