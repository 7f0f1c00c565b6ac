package service

import (
	"context"
	"sync"

	"github.com/stemsi/exam-practice/internal/client"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/repository"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	deletes int
	readErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func storeKey(userID string, examType model.ExamType) string {
	return userID + ":" + string(examType)
}

func (m *memoryStore) Get(_ context.Context, userID string, examType model.ExamType) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.data[storeKey(userID, examType)]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return data, nil
}

func (m *memoryStore) Save(_ context.Context, userID string, examType model.ExamType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data[storeKey(userID, examType)] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Delete(_ context.Context, userID string, examType model.ExamType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, storeKey(userID, examType))
	return nil
}

func (m *memoryStore) Exists(_ context.Context, userID string, examType model.ExamType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return false, m.readErr
	}
	_, ok := m.data[storeKey(userID, examType)]
	return ok, nil
}

func (m *memoryStore) has(userID string, examType model.ExamType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[storeKey(userID, examType)]
	return ok
}

func (m *memoryStore) raw(userID string, examType model.ExamType) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[storeKey(userID, examType)]...)
}

func (m *memoryStore) failReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *memoryStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type memoryQueue struct {
	mu   sync.Mutex
	subs []*model.Submission
}

func (q *memoryQueue) Enqueue(_ context.Context, sub *model.Submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, sub)
	return nil
}

func (q *memoryQueue) submissions() []*model.Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*model.Submission(nil), q.subs...)
}

type stubContent struct {
	mu     sync.Mutex
	result *client.FetchResult
	err    error
	calls  int
}

func (c *stubContent) FetchExam(_ context.Context, _ model.ExamType, _ string) (*client.FetchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.result, c.err
}

func (c *stubContent) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
