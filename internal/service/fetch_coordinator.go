package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/client"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/model"
)

// ContentFetcher retrieves fresh exam content for a user.
type ContentFetcher interface {
	FetchExam(ctx context.Context, examType model.ExamType, userID string) (*client.FetchResult, error)
}

// fetchErrorPrefix is shown to the user ahead of the failure cause.
const fetchErrorPrefix = "Prüfung konnte nicht geladen werden: "

// fetchCoordinator decides when a session needs content and loads it.
type fetchCoordinator struct {
	content ContentFetcher
	persist *sessionPersistence
	now     func() time.Time
	log     zerolog.Logger
}

func newFetchCoordinator(content ContentFetcher, persist *sessionPersistence, now func() time.Time, log zerolog.Logger) *fetchCoordinator {
	return &fetchCoordinator{
		content: content,
		persist: persist,
		now:     now,
		log:     log.With().Str("component", "fetch_coordinator").Logger(),
	}
}

// shouldFetch is true only for a session with a known exam type and no
// content that is not already loading, failed or exhausted, and only when no
// snapshot is waiting to be resumed.
func shouldFetch(s examsession.State, snapshotExists bool) bool {
	return s.ExamType.Valid() &&
		len(s.ExamParts) == 0 &&
		!snapshotExists &&
		!s.IsLoading &&
		s.Error == "" &&
		!s.AreAllExamsCompleted
}

// Run fetches content for the session when shouldFetch allows it. There is
// no automatic retry. When the snapshot store cannot be read nothing is
// fetched and the error is returned.
func (f *fetchCoordinator) Run(ctx context.Context, sess *Session) error {
	if !shouldFetch(sess.State(), false) {
		return nil
	}
	snapshotExists, err := f.persist.Exists(ctx, sess.userID, sess.examType)
	if err != nil {
		return err
	}

	_, started := sess.DispatchWith(func(s examsession.State) examsession.Action {
		if !shouldFetch(s, snapshotExists) {
			return nil
		}
		return examsession.FetchStart{}
	})
	if !started {
		return nil
	}

	log := f.log.With().
		Str("user_id", sess.userID).
		Str("exam_type", string(sess.examType)).
		Logger()

	res, err := f.content.FetchExam(ctx, sess.examType, sess.userID)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Exam fetch failed")
		sess.Dispatch(examsession.FetchError{Message: fetchErrorPrefix + err.Error()})

	case res.AllCompleted:
		log.Info().Msg("All exams completed for user")
		sess.Dispatch(examsession.FetchAllCompleted{})
		f.persist.Clear(ctx, sess.userID, sess.examType)

	default:
		log.Info().Int("parts", len(res.Parts)).Msg("Exam fetched")
		sess.Dispatch(examsession.FetchSuccess{
			Parts:     res.Parts,
			TotalTime: sess.examType.TotalTime(),
			At:        f.now(),
		})
	}
	return nil
}
