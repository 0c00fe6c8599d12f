package models

import (
	"encoding/json"
	"time"
)

// FieldStatus is the moderation state of a single pending field.
type FieldStatus string

const (
	FieldPending  FieldStatus = "pending"
	FieldApproved FieldStatus = "approved"
	FieldRejected FieldStatus = "rejected"
)

// GlobalStatus summarises all field statuses of a PendingChanges record.
type GlobalStatus string

const (
	GlobalPending   GlobalStatus = "pending"
	GlobalApproved  GlobalStatus = "approved"
	GlobalRejected  GlobalStatus = "rejected"
	GlobalPartial   GlobalStatus = "partial"
	GlobalCompleted GlobalStatus = "completed"
)

// PendingField is a proposed value for one moderated field. Value keeps
// the submitted JSON as-is; its shape depends on the field name.
type PendingField struct {
	Value  json.RawMessage `json:"value"`
	Status FieldStatus     `json:"status"`
}

// PendingChanges is the per-user moderation queue. It is persisted as a
// single JSON document next to the profile row.
type PendingChanges struct {
	Data             map[string]PendingField `json:"data"`
	GlobalStatus     GlobalStatus            `json:"globalStatus"`
	SubmittedAt      time.Time               `json:"submittedAt"`
	ModeratorID      string                  `json:"moderatorId,omitempty"`
	ModeratedAt      *time.Time              `json:"moderatedAt,omitempty"`
	ModeratorComment string                  `json:"moderatorComment,omitempty"`
}

// Clone returns a deep copy of p. A nil receiver yields nil.
func (p *PendingChanges) Clone() *PendingChanges {
	if p == nil {
		return nil
	}
	out := *p
	out.Data = make(map[string]PendingField, len(p.Data))
	for k, v := range p.Data {
		out.Data[k] = PendingField{
			Value:  append(json.RawMessage(nil), v.Value...),
			Status: v.Status,
		}
	}
	if p.ModeratedAt != nil {
		at := *p.ModeratedAt
		out.ModeratedAt = &at
	}
	return &out
}
