package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamSessionKey returns the cache key for a user's persisted session snapshot.
func (r *CacheKeyStruct) ExamSessionKey(userID, examType string) string {
	return fmt.Sprintf("exam_session:%s:%s", userID, examType)
}

var CacheKey = NewCacheKeyStruct()
