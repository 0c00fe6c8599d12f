package events

import (
	"context"

	"github.com/doclearn/doclearn/internal/logging"
)

// LogPublisher records events in the log when no broker is configured.
type LogPublisher struct {
	logger logging.Logger
}

func NewLogPublisher(logger logging.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("module", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, e ModerationEvent) error {
	p.logger.Info(ctx, "moderation event",
		"event_id", e.ID,
		"type", string(e.Type),
		"user_id", e.UserID,
		"moderator_id", e.ModeratorID,
		"fields", e.Fields,
		"global_status", string(e.GlobalStatus),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
