package services

import (
	"context"

	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/models"
)

// CatalogService exposes the specialization catalog.
type CatalogService struct {
	Deps
}

func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{Deps: d.withDefaults()}
}

func (s *CatalogService) List(ctx context.Context) ([]models.CatalogSpecialization, error) {
	return s.Repos.Specializations(s.DB).List(ctx)
}

// FindByID satisfies moderation.Catalog over the database. Inside a
// transaction the lookup joins it.
func (s *CatalogService) FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error) {
	return s.Repos.Specializations(dbx.FromContext(ctx, s.DB)).FindByID(ctx, id)
}
