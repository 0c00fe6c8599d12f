package moderation

import "github.com/doclearn/doclearn/internal/server/models"

// ComputeGlobalStatus derives the aggregate status from the field map:
// an empty map is completed, a single distinct status is reported as-is
// and any mix is partial.
func ComputeGlobalStatus(data map[string]models.PendingField) models.GlobalStatus {
	if len(data) == 0 {
		return models.GlobalCompleted
	}

	seen := make(map[models.FieldStatus]struct{}, 3)
	var last models.FieldStatus
	for _, f := range data {
		seen[f.Status] = struct{}{}
		last = f.Status
	}
	if len(seen) > 1 {
		return models.GlobalPartial
	}

	switch last {
	case models.FieldPending:
		return models.GlobalPending
	case models.FieldApproved:
		return models.GlobalApproved
	case models.FieldRejected:
		return models.GlobalRejected
	}
	return models.GlobalPartial
}

// HasPendingWork reports whether a store holds entries awaiting a decision.
func HasPendingWork(pc *models.PendingChanges) bool {
	if pc == nil {
		return false
	}
	return pc.GlobalStatus == models.GlobalPending || pc.GlobalStatus == models.GlobalPartial
}
