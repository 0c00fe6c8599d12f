// Package profiles declares the persistence contract for user profiles,
// including their pending moderation changes.
package profiles

import (
	"context"

	"github.com/doclearn/doclearn/internal/server/models"
)

// PendingQuery selects a page of profiles waiting for moderation.
type PendingQuery struct {
	Search string
	Limit  int
	Offset int
}

type Repository interface {
	// Create inserts a new profile with version 1.
	Create(ctx context.Context, p *models.Profile) (*models.Profile, error)

	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)

	// GetForUpdate reads the profile and locks its row until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Profile, error)

	// Save writes every mutable column if the stored version still equals
	// p.Version, then bumps p.Version. A stale version yields
	// common.ErrVersionConflict.
	Save(ctx context.Context, p *models.Profile) error

	// ListPending returns profiles whose pending status is pending or
	// partial, newest submission first, plus the total match count.
	ListPending(ctx context.Context, q PendingQuery) ([]*models.Profile, int, error)

	MarkEmailVerified(ctx context.Context, id string) error
}
