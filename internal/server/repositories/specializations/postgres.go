package specializations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error) {
	query :=
		`SELECT id, label, value, profile
		 FROM specializations
		 WHERE id = $1
		 `

	s := &models.CatalogSpecialization{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Label, &s.Value, &s.Profile); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.CatalogSpecialization, error) {
	query :=
		`SELECT id, label, value, profile
		 FROM specializations
		 ORDER BY label
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.CatalogSpecialization{}
	for rows.Next() {
		var s models.CatalogSpecialization
		if err := rows.Scan(&s.ID, &s.Label, &s.Value, &s.Profile); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
