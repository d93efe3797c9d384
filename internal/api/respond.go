package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"mafia-server/internal/core"
)

type problem struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeProblem(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, problem{Error: kind, Message: message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidPhase), errors.Is(err, core.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the class of err. Internal errors are logged and
// not echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, status, core.Kind(err), "internal error")
		return
	}
	writeProblem(w, status, core.Kind(err), err.Error())
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: malformed request body: %v", core.ErrValidation, err)
}
