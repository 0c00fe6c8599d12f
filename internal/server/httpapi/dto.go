package httpapi

import (
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/moderation"
	"github.com/doclearn/doclearn/internal/server/services"
)

const dateLayout = "2006-01-02"

type profileDTO struct {
	ID              string                  `json:"id"`
	Email           string                  `json:"email,omitempty"`
	Role            string                  `json:"role"`
	FirstName       string                  `json:"firstName"`
	LastName        string                  `json:"lastName"`
	MiddleName      string                  `json:"middleName,omitempty"`
	Birthday        string                  `json:"birthday,omitempty"`
	Location        string                  `json:"location,omitempty"`
	Experience      string                  `json:"experience,omitempty"`
	Bio             string                  `json:"bio,omitempty"`
	PlaceWork       string                  `json:"placeWork,omitempty"`
	AvatarURL       string                  `json:"avatarUrl,omitempty"`
	Contacts        []models.Contact        `json:"contacts"`
	Education       []models.Education      `json:"education"`
	Specialization  []models.Specialization `json:"specialization"`
	IsEmailVerified bool                    `json:"isEmailVerified"`
	IsBanned        bool                    `json:"isBanned"`
	Warnings        []models.Warning        `json:"warnings,omitempty"`
	PendingChanges  *models.PendingChanges  `json:"pendingChanges,omitempty"`
}

// newProfileDTO renders p. Private details (email, hidden contacts and
// the pending store and warnings) are only included when full is set.
func newProfileDTO(p *models.Profile, avatarURL string, full bool) profileDTO {
	dto := profileDTO{
		ID:              p.ID,
		Role:            p.Role,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		MiddleName:      p.MiddleName,
		Location:        p.Location,
		Experience:      p.Experience,
		Bio:             p.Bio,
		PlaceWork:       p.PlaceWork,
		AvatarURL:       avatarURL,
		Contacts:        []models.Contact{},
		Education:       nonNil(p.Education),
		Specialization:  nonNil(p.Specializations),
		IsEmailVerified: p.IsEmailVerified,
		IsBanned:        p.IsBanned,
	}
	if p.Birthday != nil {
		dto.Birthday = p.Birthday.Format(dateLayout)
	}
	for _, c := range p.Contacts {
		if full || c.IsPublic {
			dto.Contacts = append(dto.Contacts, c)
		}
	}
	if full {
		dto.Email = p.Email
		dto.Warnings = p.Warnings
		dto.PendingChanges = p.PendingChanges
	}
	return dto
}

// userForAdminDTO is a row of the moderation queue.
type userForAdminDTO struct {
	ID             string                 `json:"id"`
	FirstName      string                 `json:"firstName"`
	LastName       string                 `json:"lastName"`
	MiddleName     string                 `json:"middleName,omitempty"`
	Email          string                 `json:"email"`
	Role           string                 `json:"role"`
	PendingChanges *models.PendingChanges `json:"pendingChanges"`
}

type pendingPageDTO struct {
	Users      []userForAdminDTO `json:"users"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

func newPendingPageDTO(page *services.PendingPage) pendingPageDTO {
	out := pendingPageDTO{
		Users:      make([]userForAdminDTO, 0, len(page.Users)),
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}
	for _, u := range page.Users {
		out.Users = append(out.Users, userForAdminDTO{
			ID:             u.ID,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			MiddleName:     u.MiddleName,
			Email:          u.Email,
			Role:           u.Role,
			PendingChanges: u.PendingChanges,
		})
	}
	return out
}

type submitResponse struct {
	Message            string   `json:"message"`
	RequiresModeration bool     `json:"requiresModeration"`
	AppliedImmediately []string `json:"appliedImmediately"`
	SentToModeration   []string `json:"sentToModeration"`
}

func newSubmitResponse(r *moderation.SubmitResult) submitResponse {
	return submitResponse{
		Message:            r.Message(),
		RequiresModeration: r.RequiresModeration(),
		AppliedImmediately: nonNil(r.AppliedImmediately),
		SentToModeration:   nonNil(r.SentToModeration),
	}
}

type outcomeDTO struct {
	Committed    []string            `json:"committed"`
	Rejected     []string            `json:"rejected"`
	Remaining    []string            `json:"remaining"`
	GlobalStatus models.GlobalStatus `json:"globalStatus"`
}

func newOutcomeDTO(o *moderation.Outcome) outcomeDTO {
	return outcomeDTO{
		Committed:    nonNil(o.Committed),
		Rejected:     nonNil(o.Rejected),
		Remaining:    nonNil(o.Remaining),
		GlobalStatus: o.GlobalStatus,
	}
}

type tokenPairDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
