package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gwi.com/cardscan/internal/core"
	"gwi.com/cardscan/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a service error onto a status code. Client errors
// echo the message; server errors are logged and replaced with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, core.ErrEmptyImage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized. Please sign in.")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger(r).Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
