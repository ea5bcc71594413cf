package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ours334/player/internal/shared"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels to HTTP statuses. Anything unmapped is a
// 500 with a generic body; the real error only goes to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, shared.ErrDuplicateAccount):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, shared.ErrRemoteDisabled), errors.Is(err, shared.ErrMissingCredentials):
		status = http.StatusServiceUnavailable
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(requestIDKey),
		)
	}
	writeJSON(w, status, errorBody{Error: message})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		return shared.ErrInvalidInput
	}
	return nil
}
