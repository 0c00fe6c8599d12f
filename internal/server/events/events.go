// Package events publishes moderation lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/doclearn/doclearn/internal/server/models"
)

type Type string

const (
	TypeSubmitted      Type = "profile.submitted"
	TypeApprovedAll    Type = "moderation.approved_all"
	TypeRejectedAll    Type = "moderation.rejected_all"
	TypeApprovedFields Type = "moderation.approved_fields"
	TypeUserBanned     Type = "user.banned"
	TypeUserUnbanned   Type = "user.unbanned"
	TypeUserWarned     Type = "user.warned"
)

// ModerationEvent is emitted after a state change has been committed.
type ModerationEvent struct {
	ID           string              `json:"id"`
	Type         Type                `json:"type"`
	UserID       string              `json:"userId"`
	ModeratorID  string              `json:"moderatorId,omitempty"`
	Fields       []string            `json:"fields,omitempty"`
	GlobalStatus models.GlobalStatus `json:"globalStatus,omitempty"`
	At           time.Time           `json:"at"`
}

func NewEvent(t Type, userID, moderatorID string, fields []string, status models.GlobalStatus, at time.Time) ModerationEvent {
	return ModerationEvent{
		ID:           uuid.NewString(),
		Type:         t,
		UserID:       userID,
		ModeratorID:  moderatorID,
		Fields:       fields,
		GlobalStatus: status,
		At:           at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e ModerationEvent) error
	Close() error
}
