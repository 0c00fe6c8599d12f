package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/logging"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Data    any      `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: status < 400, Message: msg})
}

// statusFor maps an error to the HTTP status the API reports for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrVersionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err. Internal errors are logged and replaced with a
// generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	status := statusFor(err)

	var msg string
	switch status {
	case http.StatusInternalServerError:
		logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	case http.StatusUnauthorized:
		msg = common.Message(err, err.Error())
	default:
		msg = common.Message(err, http.StatusText(status))
	}

	writeJSON(w, status, envelope{Message: msg, Fields: common.FieldsOf(err)})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return common.BadRequest("request body is not valid JSON")
	}
	return nil
}
