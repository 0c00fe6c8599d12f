package moderation

import (
	"testing"

	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func fieldsWith(statuses ...models.FieldStatus) map[string]models.PendingField {
	out := make(map[string]models.PendingField, len(statuses))
	for i, s := range statuses {
		out[string(rune('a'+i))] = models.PendingField{Status: s}
	}
	return out
}

func TestComputeGlobalStatus(t *testing.T) {
	tests := []struct {
		name string
		data map[string]models.PendingField
		want models.GlobalStatus
	}{
		{"empty", map[string]models.PendingField{}, models.GlobalCompleted},
		{"nil", nil, models.GlobalCompleted},
		{"pending pending", fieldsWith(models.FieldPending, models.FieldPending), models.GlobalPending},
		{"approved approved", fieldsWith(models.FieldApproved, models.FieldApproved), models.GlobalApproved},
		{"rejected", fieldsWith(models.FieldRejected), models.GlobalRejected},
		{"approved rejected", fieldsWith(models.FieldApproved, models.FieldRejected), models.GlobalPartial},
		{"pending rejected", fieldsWith(models.FieldPending, models.FieldRejected), models.GlobalPartial},
		{"all three", fieldsWith(models.FieldPending, models.FieldApproved, models.FieldRejected), models.GlobalPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeGlobalStatus(tt.data))
			// deterministic across repeated evaluation
			assert.Equal(t, tt.want, ComputeGlobalStatus(tt.data))
		})
	}
}

func TestHasPendingWork(t *testing.T) {
	assert.False(t, HasPendingWork(nil))
	assert.True(t, HasPendingWork(&models.PendingChanges{GlobalStatus: models.GlobalPending}))
	assert.True(t, HasPendingWork(&models.PendingChanges{GlobalStatus: models.GlobalPartial}))
	assert.False(t, HasPendingWork(&models.PendingChanges{GlobalStatus: models.GlobalRejected}))
	assert.False(t, HasPendingWork(&models.PendingChanges{GlobalStatus: models.GlobalCompleted}))
}
