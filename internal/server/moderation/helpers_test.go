package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	entries map[string]string
	err     error
	calls   map[string]int
}

func newFakeCatalog(entries map[string]string) *fakeCatalog {
	return &fakeCatalog{entries: entries, calls: map[string]int{}}
}

func (c *fakeCatalog) FindByID(_ context.Context, id string) (*models.CatalogSpecialization, error) {
	c.calls[id]++
	if c.err != nil {
		return nil, c.err
	}
	label, ok := c.entries[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.CatalogSpecialization{ID: id, Label: label, Value: id}, nil
}

func observedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewZapLogger(zap.New(core)), logs
}

func newTestEngine(t *testing.T, catalog Catalog, strict bool) *Engine {
	t.Helper()
	n := NewNormalizer(catalog, logging.Nop(), strict)
	return NewEngine(n, WithClock(func() time.Time { return fixedNow }))
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func newProfile() *models.Profile {
	return &models.Profile{
		ID:        "u-1",
		Email:     "anna@example.com",
		Role:      common.RoleUser,
		FirstName: "Anya",
		LastName:  "Ivanova",
		Bio:       "old bio",
	}
}

var errBoom = errors.New("boom")
