package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/moderation"
)

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	h.writeProfile(w, r, id.UserID, true)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	userID := chi.URLParam(r, "userId")
	full := userID == id.UserID || common.IsModeratorRole(id.Role)
	h.writeProfile(w, r, userID, full)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, userID string, full bool) {
	p, avatarURL, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, newProfileDTO(p, avatarURL, full))
}

// updateMe accepts {fieldName: newValue, ...} for the caller's profile.
func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var payload moderation.Payload
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.profiles.Submit(r.Context(), id.UserID, payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmitResponse(res))
}

func (h *Handler) avatarUploadURL(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	key, url, err := h.profiles.AvatarUploadURL(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"key": key, "uploadUrl": url})
}

func (h *Handler) listSpecializations(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(list))
}
