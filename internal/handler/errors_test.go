package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/response"
	"github.com/stemsi/exam-practice/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"exam type", model.ErrInvalidExamType, http.StatusBadRequest, response.ErrInvalidExamType},
		{"part range", fmt.Errorf("%w: 9 of 2", service.ErrPartIndexOutOfRange), http.StatusUnprocessableEntity, response.ErrPartOutOfRange},
		{"not active", service.ErrSessionNotActive, http.StatusConflict, response.ErrSessionNotActive},
		{"audio status", service.ErrInvalidAudioStatus, http.StatusBadRequest, response.ErrInvalidAudioStatus},
		{"missing answer", service.ErrMissingAnswer, http.StatusBadRequest, response.ErrMissingAnswer},
		{"store down", fmt.Errorf("%w: %w", service.ErrSnapshotUnavailable, errors.New("i/o timeout")), http.StatusServiceUnavailable, response.ErrUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
