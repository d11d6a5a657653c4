package audit

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/ladtc/ladtc/internal/observability"
	"github.com/ladtc/ladtc/internal/shared"
)

// DefaultQueueSize bounds the number of entries waiting to be written.
const DefaultQueueSize = 256

const writeTimeout = 5 * time.Second

// Recorder accepts audit entries without blocking the caller. Entries are
// written by Run; when the queue is full the entry is dropped and counted.
type Recorder struct {
	store   Writer
	queue   chan Entry
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRecorder builds a Recorder over store with a queue of size entries.
func NewRecorder(store Writer, logger *slog.Logger, metrics *observability.Metrics, size int) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		queue:   make(chan Entry, size),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Record enqueues an entry. It never blocks and never fails; the caller's
// context is not used for the write, which outlives the request.
func (r *Recorder) Record(_ context.Context, actorID, action, targetKind, targetID string, diff map[string]any) {
	if r == nil {
		return
	}
	entry := Entry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		TargetKind: targetKind,
		TargetID:   targetID,
		Diff:       maps.Clone(diff),
		OccurredAt: r.now().UTC(),
	}
	select {
	case r.queue <- entry:
	default:
		r.metrics.ObserveAudit(observability.AuditDropped)
		r.logger.Warn("audit queue full, entry dropped",
			slog.String("action", action),
			slog.String("target_kind", targetKind),
			slog.String("target_id", targetID),
		)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case entry := <-r.queue:
			r.write(entry)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		default:
			return
		}
	}
}

func (r *Recorder) write(entry Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(entry, fmt.Errorf("%w: panic: %v", shared.ErrAuditWriteFailed, rec))
		}
	}()
	if r.store == nil {
		r.fail(entry, fmt.Errorf("%w: no store", shared.ErrAuditWriteFailed))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.Insert(ctx, entry); err != nil {
		r.fail(entry, err)
		return
	}
	r.metrics.ObserveAudit(observability.AuditWritten)
}

func (r *Recorder) fail(entry Entry, err error) {
	r.metrics.ObserveAudit(observability.AuditFailed)
	r.logger.Error("audit write failed",
		slog.Any("error", err),
		slog.String("action", entry.Action),
		slog.String("actor_id", entry.ActorID),
		slog.String("target_kind", entry.TargetKind),
		slog.String("target_id", entry.TargetID),
	)
}
