package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error  string   `json:"error"`
	Type   string   `json:"type,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithAppError maps typed errors onto HTTP statuses. Untyped and
// internal errors are logged and reported without their cause.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondWithError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
		return
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	status := statusForError(appErr.Type)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	respondWithJSON(w, status, ErrorResponse{
		Error:  appErr.Message,
		Type:   string(appErr.Type),
		Fields: appErr.Fields,
	})
}

func statusForError(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeFileFormat:
		return http.StatusUnsupportedMediaType
	case apperrors.ErrorTypeParse, apperrors.ErrorTypeEmptyResult, apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeSchemaMismatch:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
