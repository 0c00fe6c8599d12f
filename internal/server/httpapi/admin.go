package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/services"
)

type commentRequest struct {
	Comment string `json:"comment"`
}

type approveSpecificRequest struct {
	FieldsToApprove []string `json:"fieldsToApprove"`
	Comment         string   `json:"comment"`
}

type banRequest struct {
	Reason string `json:"reason"`
}

type warningRequest struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.Validation(name+" must be an integer", name)
	}
	return n, nil
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.moderation.ListPending(r.Context(), id.UserID, services.PendingQuery{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPendingPageDTO(res))
}

func (h *Handler) pendingDiff(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	diff, err := h.moderation.Diff(r.Context(), id.UserID, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, diff)
}

func (h *Handler) approveChanges(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req commentRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.moderation.ApproveAll(r.Context(), id.UserID, chi.URLParam(r, "userId"), req.Comment)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Changes approved", Data: newOutcomeDTO(out)})
}

func (h *Handler) rejectChanges(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req commentRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.moderation.RejectAll(r.Context(), id.UserID, chi.URLParam(r, "userId"), req.Comment)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Changes rejected", Data: newOutcomeDTO(out)})
}

func (h *Handler) approveSpecificFields(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req approveSpecificRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.moderation.ApproveSpecific(r.Context(), id.UserID, chi.URLParam(r, "userId"), req.FieldsToApprove, req.Comment)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Selected fields approved", Data: newOutcomeDTO(out)})
}

func (h *Handler) banUser(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req banRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.moderation.Ban(r.Context(), id.UserID, chi.URLParam(r, "userId"), req.Reason); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "User banned")
}

func (h *Handler) unbanUser(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	if err := h.moderation.Unban(r.Context(), id.UserID, chi.URLParam(r, "userId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "User unbanned")
}

func (h *Handler) warnUser(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req warningRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.moderation.Warn(r.Context(), id.UserID, chi.URLParam(r, "userId"), req.Message, req.Reason); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Warning issued")
}
