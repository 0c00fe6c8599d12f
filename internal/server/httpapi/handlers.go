// Package httpapi exposes the profile, account and moderation services over
// a JSON HTTP API built on chi.
package httpapi

import (
	"context"

	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/moderation"
	"github.com/doclearn/doclearn/internal/server/services"
)

type ProfileAPI interface {
	Submit(ctx context.Context, userID string, payload moderation.Payload) (*moderation.SubmitResult, error)
	Get(ctx context.Context, userID string) (*models.Profile, string, error)
	AvatarUploadURL(ctx context.Context, userID string) (string, string, error)
}

type ModerationAPI interface {
	ListPending(ctx context.Context, moderatorID string, q services.PendingQuery) (*services.PendingPage, error)
	Diff(ctx context.Context, moderatorID, userID string) ([]moderation.FieldDiff, error)
	ApproveAll(ctx context.Context, moderatorID, userID, comment string) (*moderation.Outcome, error)
	RejectAll(ctx context.Context, moderatorID, userID, comment string) (*moderation.Outcome, error)
	ApproveSpecific(ctx context.Context, moderatorID, userID string, fields []string, comment string) (*moderation.Outcome, error)
	Ban(ctx context.Context, moderatorID, userID, reason string) error
	Unban(ctx context.Context, moderatorID, userID string) error
	Warn(ctx context.Context, moderatorID, userID, message, reason string) error
}

type AccountAPI interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Profile, error)
	ResendCode(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type CatalogAPI interface {
	List(ctx context.Context) ([]models.CatalogSpecialization, error)
}

// Handler groups the endpoint implementations.
type Handler struct {
	profiles   ProfileAPI
	moderation ModerationAPI
	accounts   AccountAPI
	catalog    CatalogAPI
	logger     logging.Logger
}

func NewHandler(p ProfileAPI, m ModerationAPI, a AccountAPI, c CatalogAPI, logger logging.Logger) *Handler {
	return &Handler{
		profiles:   p,
		moderation: m,
		accounts:   a,
		catalog:    c,
		logger:     logger.With("module", "http_handler"),
	}
}
