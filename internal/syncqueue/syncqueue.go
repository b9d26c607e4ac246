// Package syncqueue publishes entity change notifications for cross-region sync.
package syncqueue

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is the queue declared when none is configured.
const DefaultQueue = "syncing-queue"

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the syncqueue package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// SyncMessage describes one changed row.
type SyncMessage struct {
	SyncEventID     string    `json:"syncEventId"`
	EntityType      string    `json:"entityType"`
	EntityID        string    `json:"entityId"`
	SourceRegion    string    `json:"sourceRegion"`
	ChangeTimestamp time.Time `json:"changeTimestamp"`
	TableName       string    `json:"tableName"`
	IsDeleted       bool      `json:"isDeleted"`
}

// NewMessage stamps a change with a fresh event id and the current time.
func NewMessage(entityType, entityID, tableName, region string, deleted bool) SyncMessage {
	return SyncMessage{
		SyncEventID:     uuid.NewString(),
		EntityType:      entityType,
		EntityID:        entityID,
		SourceRegion:    region,
		ChangeTimestamp: time.Now().UTC(),
		TableName:       tableName,
		IsDeleted:       deleted,
	}
}

// Publisher delivers sync messages to the broker.
type Publisher interface {
	Send(ctx context.Context, msg SyncMessage) error
	SendBatch(ctx context.Context, msgs []SyncMessage) error
	Close() error
}

// LogPublisher only logs messages. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Send(ctx context.Context, msg SyncMessage) error {
	logger.Debug("sync message (no broker)",
		slog.String("sync_event_id", msg.SyncEventID),
		slog.String("entity_type", msg.EntityType),
		slog.String("entity_id", msg.EntityID),
		slog.Bool("is_deleted", msg.IsDeleted),
	)
	return nil
}

func (p LogPublisher) SendBatch(ctx context.Context, msgs []SyncMessage) error {
	for _, m := range msgs {
		_ = p.Send(ctx, m)
	}
	return nil
}

func (LogPublisher) Close() error { return nil }
