package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/client"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/repository"
)

const (
	popTimeout   = time.Second
	sendTimeout  = 15 * time.Second
	drainTimeout = 10 * time.Second
)

// SubmissionQueue is the Redis list the session service feeds.
type SubmissionQueue interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	TryPop(ctx context.Context) ([]byte, error)
	Requeue(ctx context.Context, raw []byte) error
	Len(ctx context.Context) (int64, error)
}

// SubmissionSender delivers a report to the content backend.
type SubmissionSender interface {
	SaveExam(ctx context.Context, sub *model.Submission) error
}

// SubmissionWorker consumes persist_submissions_queue and posts each report
// to the backend's save-exam endpoint.
type SubmissionWorker struct {
	queue      SubmissionQueue
	sender     SubmissionSender
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(queue SubmissionQueue, sender SubmissionSender, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		queue:      queue,
		sender:     sender,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	raw, err := w.queue.Pop(ctx, popTimeout)
	if err != nil {
		if !errors.Is(err, repository.ErrQueueEmpty) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Queue pop error")
			sleep(ctx, w.retryDelay)
		}
		return
	}

	if err := w.deliver(ctx, raw); err != nil {
		w.log.Warn().Err(err).Dur("retry_in", w.retryDelay).Msg("Delivery failed, requeued")
		if err := w.queue.Requeue(context.WithoutCancel(ctx), raw); err != nil {
			w.log.Error().Err(err).Msg("Requeue failed, submission lost")
		}
		sleep(ctx, w.retryDelay)
	}
}

// deliver posts one queued payload. It returns an error only when the
// payload should be retried; undecodable payloads and permanent backend
// rejections are logged and dropped.
func (w *SubmissionWorker) deliver(ctx context.Context, raw []byte) error {
	var sub model.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping submission")
		return nil
	}

	log := w.log.With().
		Str("submission_id", sub.ID).
		Str("user_id", sub.UserID).
		Str("exam_type", string(sub.ExamType)).
		Logger()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := w.sender.SaveExam(sendCtx, &sub)
	var se *client.StatusError
	switch {
	case err == nil:
		log.Info().Int("score", sub.TotalScore).Msg("Submission delivered")
		return nil
	case errors.As(err, &se) && se.Permanent():
		log.Error().Err(err).Msg("Submission rejected by backend, dropping")
		return nil
	default:
		return err
	}
}

// drain delivers everything still queued before shutdown. A failed delivery
// goes back to the queue for the next process start.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for ctx.Err() == nil {
		raw, err := w.queue.TryPop(ctx)
		if err != nil {
			if !errors.Is(err, repository.ErrQueueEmpty) {
				w.log.Error().Err(err).Msg("Drain pop error")
			}
			break
		}

		if err := w.deliver(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain delivery error")
			if err := w.queue.Requeue(context.WithoutCancel(ctx), raw); err != nil {
				w.log.Error().Err(err).Msg("Requeue failed, submission lost")
			}
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}

	left, err := w.queue.Len(context.WithoutCancel(ctx))
	if err != nil {
		w.log.Error().Err(err).Msg("Queue length check failed")
		return
	}
	if left > 0 {
		w.log.Warn().Int64("left", left).Msg("Submissions left in queue")
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
