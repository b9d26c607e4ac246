package syncqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/recruiter/internal/jobs"
)

// Enqueuer persists background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any) error
}

// Recorder turns entity changes into sync.publish jobs.
type Recorder struct {
	enq    Enqueuer
	region string
}

func NewRecorder(enq Enqueuer, region string) *Recorder {
	return &Recorder{enq: enq, region: region}
}

// Record queues a sync message. Failures are logged, not returned.
func (r *Recorder) Record(ctx context.Context, entityType, entityID, tableName string, deleted bool) {
	if r == nil || r.enq == nil {
		return
	}
	msg := NewMessage(entityType, entityID, tableName, r.region, deleted)
	if err := r.enq.Enqueue(ctx, jobs.TypeSyncPublish, msg); err != nil {
		logger.Error("enqueue sync message",
			slog.String("entity_type", entityType),
			slog.String("entity_id", entityID),
			slog.Any("err", err),
		)
	}
}

// Handler returns the sync.publish job handler that sends through pub.
func Handler(pub Publisher) jobs.Handler {
	return func(ctx context.Context, j *jobs.Job) error {
		var msg SyncMessage
		if err := j.Decode(&msg); err != nil {
			return jobs.Permanent(err)
		}
		if err := pub.Send(ctx, msg); err != nil {
			return fmt.Errorf("send sync message: %w", err)
		}
		return nil
	}
}
