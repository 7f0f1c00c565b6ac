package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/response"
	"github.com/stemsi/exam-practice/internal/service"
)

// classify maps service errors to an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, model.ErrInvalidExamType):
		return http.StatusBadRequest, response.ErrInvalidExamType
	case errors.Is(err, service.ErrPartIndexOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrPartOutOfRange
	case errors.Is(err, service.ErrSessionNotActive):
		return http.StatusConflict, response.ErrSessionNotActive
	case errors.Is(err, service.ErrInvalidAudioStatus):
		return http.StatusBadRequest, response.ErrInvalidAudioStatus
	case errors.Is(err, service.ErrMissingAnswer):
		return http.StatusBadRequest, response.ErrMissingAnswer
	case errors.Is(err, service.ErrSnapshotUnavailable):
		return http.StatusServiceUnavailable, response.ErrUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
