package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starford/atelier/internal/apperr"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error     string `json:"error"`
	NeedsAuth bool   `json:"needsAuth,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", apperr.ErrInvalidRequest, err)
	}
	return nil
}

// writeError maps a service error onto a status code. Unknown errors are
// logged and reported as "internal error".
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrEmptyContent):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(apperr.ErrEmptyContent.Error()))
	case errors.Is(err, apperr.ErrUnsupported):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrReconnectRequired):
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: apperr.ErrReconnectRequired.Error(), NeedsAuth: true})
	case errors.Is(err, apperr.ErrUpstream):
		slog.Warn("api: upstream failure", slog.String("op", op), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		slog.Error("api: "+op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
