package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionEvictor drops in-memory sessions nobody is using.
type SessionEvictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// StaleSnapshotStore removes snapshots that outlived their TTL. Redis
// expires keys itself, so only the Postgres store needs sweeping.
type StaleSnapshotStore interface {
	DeleteStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// SessionJanitor periodically evicts idle sessions and sweeps stale snapshots.
type SessionJanitor struct {
	sessions    SessionEvictor
	snapshots   StaleSnapshotStore // nil when the store expires on its own
	interval    time.Duration
	idleTimeout time.Duration
	snapshotTTL time.Duration
	log         zerolog.Logger
}

// NewSessionJanitor creates a new SessionJanitor. snapshots may be nil.
func NewSessionJanitor(
	sessions SessionEvictor,
	snapshots StaleSnapshotStore,
	interval, idleTimeout, snapshotTTL time.Duration,
	log zerolog.Logger,
) *SessionJanitor {
	return &SessionJanitor{
		sessions:    sessions,
		snapshots:   snapshots,
		interval:    interval,
		idleTimeout: idleTimeout,
		snapshotTTL: snapshotTTL,
		log:         log.With().Str("component", "session_janitor").Logger(),
	}
}

// Start runs sweeps every interval until ctx is done. Call in a goroutine.
func (j *SessionJanitor) Start(ctx context.Context) {
	j.log.Info().Dur("interval", j.interval).Msg("Worker started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SessionJanitor) sweep(ctx context.Context) {
	if n := j.sessions.EvictIdle(j.idleTimeout); n > 0 {
		j.log.Info().Int("count", n).Msg("Evicted idle sessions")
	}

	if j.snapshots == nil {
		return
	}
	n, err := j.snapshots.DeleteStale(ctx, j.snapshotTTL)
	if err != nil {
		if ctx.Err() == nil {
			j.log.Error().Err(err).Msg("Stale snapshot sweep failed")
		}
		return
	}
	if n > 0 {
		j.log.Info().Int64("count", n).Msg("Deleted stale snapshots")
	}
}
