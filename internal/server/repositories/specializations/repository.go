// Package specializations exposes the read-only specialization catalog.
package specializations

import (
	"context"

	"github.com/doclearn/doclearn/internal/server/models"
)

type Repository interface {
	FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error)
	List(ctx context.Context) ([]models.CatalogSpecialization, error)
}
