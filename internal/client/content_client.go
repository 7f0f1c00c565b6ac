// Package client talks to the content backend that serves exam parts and
// stores finished exam reports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stemsi/exam-practice/internal/model"
)

const statusAllCompleted = "all_completed"

// maxBodyBytes bounds how much of a backend response is read.
const maxBodyBytes = 8 << 20

var (
	// ErrEmptyExam is returned when the backend answers with no parts.
	ErrEmptyExam = errors.New("backend returned an empty exam")
	// ErrMalformedExam is returned when the backend payload cannot be decoded.
	ErrMalformedExam = errors.New("backend returned a malformed exam")
)

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Op     string
	Status string
	Code   int
}

func (e *StatusError) Error() string { return e.Op + ": " + e.Status }

// Permanent reports whether retrying the same request cannot succeed.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests && e.Code != http.StatusRequestTimeout
}

// FetchResult is the outcome of a successful exam fetch. Exactly one of
// Parts (non-empty) or AllCompleted is set.
type FetchResult struct {
	Parts        model.Parts
	AllCompleted bool
}

// ContentClient is an HTTP client for the content backend.
type ContentClient struct {
	baseURL string
	http    *http.Client
}

// NewContentClient creates a new ContentClient rooted at baseURL.
func NewContentClient(baseURL string, timeout time.Duration) *ContentClient {
	return &ContentClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchExam requests a fresh exam of the given type for the user.
func (c *ContentClient) FetchExam(ctx context.Context, examType model.ExamType, userID string) (*FetchResult, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/%s-exam", c.baseURL, examType))
	if err != nil {
		return nil, fmt.Errorf("build exam url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build exam request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s exam: %w", examType, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, &StatusError{Op: fmt.Sprintf("fetch %s exam", examType), Status: res.Status, Code: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s exam: %w", examType, err)
	}
	return decodeExam(body)
}

// decodeExam accepts either an array of parts or an {"status": ...} object.
func decodeExam(body []byte) (*FetchResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyExam
	}

	switch body[0] {
	case '{':
		var status struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedExam, err)
		}
		if status.Status == statusAllCompleted {
			return &FetchResult{AllCompleted: true}, nil
		}
		return nil, fmt.Errorf("%w: unexpected object payload", ErrMalformedExam)

	case '[':
		var parts model.Parts
		if err := json.Unmarshal(body, &parts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedExam, err)
		}
		if len(parts) == 0 {
			return nil, ErrEmptyExam
		}
		return &FetchResult{Parts: parts}, nil
	}

	if bytes.Equal(body, []byte("null")) {
		return nil, ErrEmptyExam
	}
	return nil, ErrMalformedExam
}

// SaveExam posts a finished exam report.
func (c *ContentClient) SaveExam(ctx context.Context, sub *model.Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/save-exam", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save exam: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))

	if res.StatusCode/100 != 2 {
		return &StatusError{Op: "save exam", Status: res.Status, Code: res.StatusCode}
	}
	return nil
}
