package services

import (
	"context"
	"fmt"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/events"
	"github.com/doclearn/doclearn/internal/server/metrics"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/moderation"
)

// ProfileService is the user-facing write path for profile edits.
type ProfileService struct {
	Deps
	engine  *moderation.Engine
	avatars AvatarSigner
}

func NewProfileService(d Deps, engine *moderation.Engine, avatars AvatarSigner) *ProfileService {
	d = d.withDefaults()
	d.Logger = d.Logger.With("module", "profile_service")
	return &ProfileService{Deps: d, engine: engine, avatars: avatars}
}

// Submit routes payload for userID: immediate fields are written to the
// profile and moderated ones are queued, all in one transaction.
func (s *ProfileService) Submit(ctx context.Context, userID string, payload moderation.Payload) (*moderation.SubmitResult, error) {
	var (
		result *moderation.SubmitResult
		status models.GlobalStatus
		at     time.Time
	)

	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Profiles(tx)

		p, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userNotFound(err)
		}
		if p.IsBanned {
			return common.Forbidden("account is banned")
		}

		result, err = s.engine.Submit(ctx, p, payload)
		if err != nil {
			return err
		}
		if pc := p.PendingChanges; pc != nil {
			status, at = pc.GlobalStatus, pc.SubmittedAt
		}
		return repo.Save(ctx, p)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.Metrics.FieldsSubmitted(metrics.KindImmediate, len(result.AppliedImmediately))
	s.Metrics.FieldsSubmitted(metrics.KindModerated, len(result.SentToModeration))
	s.Logger.Info(ctx, "profile submitted",
		"user_id", userID,
		"applied", result.AppliedImmediately,
		"queued", result.SentToModeration,
	)

	if result.RequiresModeration() {
		s.publish(ctx, events.NewEvent(events.TypeSubmitted, userID, "", result.SentToModeration, status, at))
	}
	return result, nil
}

// Get loads a profile for display together with its avatar URL.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, string, error) {
	p, err := s.Repos.Profiles(s.DB).GetByID(ctx, userID)
	if err != nil {
		return nil, "", userNotFound(err)
	}
	return p, s.avatarURL(ctx, p), nil
}

// AvatarUploadURL hands out a presigned upload target. The returned key is
// then submitted as the avatar field.
func (s *ProfileService) AvatarUploadURL(ctx context.Context, userID string) (string, string, error) {
	if s.avatars == nil {
		return "", "", common.BadRequest("avatar storage is not configured")
	}
	key, url, err := s.avatars.UploadURL(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("presign avatar upload: %w", err)
	}
	return key, url, nil
}

func (s *ProfileService) avatarURL(ctx context.Context, p *models.Profile) string {
	if s.avatars == nil || p.Avatar == "" {
		return p.Avatar
	}
	url, err := s.avatars.URL(ctx, p.Avatar)
	if err != nil {
		s.Logger.Warn(ctx, "avatar presign failed", "user_id", p.ID, "error", err)
		return ""
	}
	return url
}
