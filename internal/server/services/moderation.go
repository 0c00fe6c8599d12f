package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/events"
	"github.com/doclearn/doclearn/internal/server/metrics"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/moderation"
	"github.com/doclearn/doclearn/internal/server/repositories/profiles"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	minBanReason     = 3
	minWarning       = 5
)

// PendingQuery selects a page of the moderation queue. Zero Page and
// Limit mean the first page and DefaultPageLimit.
type PendingQuery struct {
	Search string
	Page   int
	Limit  int
}

type PendingPage struct {
	Users      []*models.Profile
	Total      int
	Page       int
	TotalPages int
}

// AdminModerationService carries out moderator decisions. The acting
// account is re-read inside every transaction, so a demotion or a ban
// takes effect immediately.
type AdminModerationService struct {
	Deps
	engine *moderation.Engine
}

func NewAdminModerationService(d Deps, engine *moderation.Engine) *AdminModerationService {
	d = d.withDefaults()
	d.Logger = d.Logger.With("module", "admin_moderation_service")
	return &AdminModerationService{Deps: d, engine: engine}
}

func (s *AdminModerationService) authorize(ctx context.Context, repo profiles.Repository, moderatorID string) (*models.Profile, error) {
	m, err := repo.GetByID(ctx, moderatorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Forbidden("moderator account not found")
		}
		return nil, err
	}
	if err := moderation.CheckModerator(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListPending returns users whose pending store awaits a decision, newest
// submission first.
func (s *AdminModerationService) ListPending(ctx context.Context, moderatorID string, q PendingQuery) (*PendingPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page < 1 {
		return nil, common.Validation("page must be at least 1", "page")
	}
	if q.Limit < 1 || q.Limit > MaxPageLimit {
		return nil, common.Validation("limit must be between 1 and 100", "limit")
	}

	repo := s.Repos.Profiles(s.DB)
	if _, err := s.authorize(ctx, repo, moderatorID); err != nil {
		return nil, err
	}

	users, total, err := repo.ListPending(ctx, profiles.PendingQuery{
		Search: q.Search,
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &PendingPage{
		Users:      users,
		Total:      total,
		Page:       q.Page,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// Diff previews the pending store of userID against the live profile.
func (s *AdminModerationService) Diff(ctx context.Context, moderatorID, userID string) ([]moderation.FieldDiff, error) {
	repo := s.Repos.Profiles(s.DB)
	if _, err := s.authorize(ctx, repo, moderatorID); err != nil {
		return nil, err
	}
	p, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, userNotFound(err)
	}
	return s.engine.Preview(ctx, p)
}

func (s *AdminModerationService) ApproveAll(ctx context.Context, moderatorID, userID, comment string) (*moderation.Outcome, error) {
	d := moderation.Decision{ModeratorID: moderatorID, Comment: comment}
	return s.decide(ctx, d, userID, metrics.DecisionApproveAll, events.TypeApprovedAll,
		func(ctx context.Context, p *models.Profile) (*moderation.Outcome, error) {
			return s.engine.ApproveAll(ctx, p, d)
		})
}

func (s *AdminModerationService) RejectAll(ctx context.Context, moderatorID, userID, comment string) (*moderation.Outcome, error) {
	d := moderation.Decision{ModeratorID: moderatorID, Comment: comment}
	return s.decide(ctx, d, userID, metrics.DecisionRejectAll, events.TypeRejectedAll,
		func(ctx context.Context, p *models.Profile) (*moderation.Outcome, error) {
			return s.engine.RejectAll(ctx, p, d)
		})
}

func (s *AdminModerationService) ApproveSpecific(ctx context.Context, moderatorID, userID string, fields []string, comment string) (*moderation.Outcome, error) {
	d := moderation.Decision{ModeratorID: moderatorID, Comment: comment}
	return s.decide(ctx, d, userID, metrics.DecisionApproveSpecific, events.TypeApprovedFields,
		func(ctx context.Context, p *models.Profile) (*moderation.Outcome, error) {
			return s.engine.ApproveSpecific(ctx, p, fields, d)
		})
}

func (s *AdminModerationService) decide(
	ctx context.Context,
	d moderation.Decision,
	userID, decision string,
	eventType events.Type,
	apply func(ctx context.Context, p *models.Profile) (*moderation.Outcome, error),
) (*moderation.Outcome, error) {
	var (
		out *moderation.Outcome
		at  time.Time
	)

	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Profiles(tx)
		if _, err := s.authorize(ctx, repo, d.ModeratorID); err != nil {
			return err
		}

		p, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userNotFound(err)
		}

		out, err = apply(ctx, p)
		if err != nil {
			return err
		}
		if pc := p.PendingChanges; pc != nil && pc.ModeratedAt != nil {
			at = *pc.ModeratedAt
		}
		return repo.Save(ctx, p)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.Metrics.Decision(decision)
	s.Logger.Info(ctx, "moderation decision committed",
		"decision", decision,
		"user_id", userID,
		"moderator_id", d.ModeratorID,
		"committed", out.Committed,
		"rejected", out.Rejected,
		"global_status", string(out.GlobalStatus),
	)

	fields := out.Committed
	if eventType == events.TypeRejectedAll {
		fields = out.Rejected
	}
	s.publish(ctx, events.NewEvent(eventType, userID, d.ModeratorID, fields, out.GlobalStatus, at))
	return out, nil
}

// Ban blocks userID. Moderators cannot ban themselves or other moderators.
// Outstanding refresh tokens are revoked with the ban.
func (s *AdminModerationService) Ban(ctx context.Context, moderatorID, userID, reason string) error {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < minBanReason {
		return common.Validation("reason must contain at least 3 characters", "reason")
	}
	if moderatorID == userID {
		return common.BadRequest("you cannot ban yourself")
	}

	now := time.Now().UTC()
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Profiles(tx)
		if _, err := s.authorize(ctx, repo, moderatorID); err != nil {
			return err
		}

		p, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userNotFound(err)
		}
		if common.IsModeratorRole(p.Role) {
			return common.Forbidden("administrators cannot be banned")
		}
		if p.IsBanned {
			return common.Conflict("user is already banned")
		}

		p.IsBanned = true
		p.BanReason = reason
		p.BannedAt = &now
		p.BannedBy = moderatorID
		if err := repo.Save(ctx, p); err != nil {
			return err
		}
		return s.Repos.RefreshTokens(tx).DeleteByUser(ctx, userID)
	})
	if err != nil {
		return translate(err)
	}

	s.Logger.Info(ctx, "user banned", "user_id", userID, "moderator_id", moderatorID)
	s.publish(ctx, events.NewEvent(events.TypeUserBanned, userID, moderatorID, nil, "", now))
	return nil
}

func (s *AdminModerationService) Unban(ctx context.Context, moderatorID, userID string) error {
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Profiles(tx)
		if _, err := s.authorize(ctx, repo, moderatorID); err != nil {
			return err
		}

		p, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userNotFound(err)
		}
		if !p.IsBanned {
			return common.Conflict("user is not banned")
		}

		p.IsBanned = false
		p.BanReason = ""
		p.BannedAt = nil
		p.BannedBy = ""
		return repo.Save(ctx, p)
	})
	if err != nil {
		return translate(err)
	}

	s.Logger.Info(ctx, "user unbanned", "user_id", userID, "moderator_id", moderatorID)
	s.publish(ctx, events.NewEvent(events.TypeUserUnbanned, userID, moderatorID, nil, "", time.Now().UTC()))
	return nil
}

// Warn appends a moderator warning to userID's profile. Reason is optional.
func (s *AdminModerationService) Warn(ctx context.Context, moderatorID, userID, message, reason string) error {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) < minWarning {
		return common.Validation("message must contain at least 5 characters", "message")
	}
	if moderatorID == userID {
		return common.BadRequest("you cannot warn yourself")
	}

	w := models.Warning{
		Message:  message,
		IssuedBy: moderatorID,
		IssuedAt: time.Now().UTC(),
		Reason:   strings.TrimSpace(reason),
	}
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Profiles(tx)
		if _, err := s.authorize(ctx, repo, moderatorID); err != nil {
			return err
		}

		p, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userNotFound(err)
		}
		p.Warnings = append(p.Warnings, w)
		return repo.Save(ctx, p)
	})
	if err != nil {
		return translate(err)
	}

	s.Logger.Info(ctx, "user warned", "user_id", userID, "moderator_id", moderatorID)
	s.publish(ctx, events.NewEvent(events.TypeUserWarned, userID, moderatorID, nil, "", w.IssuedAt))
	return nil
}
