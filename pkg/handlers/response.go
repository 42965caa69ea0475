package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

// Envelope is the {ok, message} shape shared by every API response.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a failed envelope and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, Envelope{OK: false, Message: message})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusForError maps an error to the HTTP status returned to the browser.
// Upstream Notion failures keep the upstream status.
func StatusForError(err error) int {
	var apiErr *notion.APIError
	var exchangeErr *notion.ExchangeError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperrors.ErrNoConnections),
		errors.Is(err, apperrors.ErrInvalidState),
		errors.Is(err, apperrors.ErrDatabasesNotDetected),
		errors.Is(err, apperrors.ErrStorageFull):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidManagerSecret):
		return http.StatusUnauthorized
	case errors.As(err, &exchangeErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Status >= 400:
		return apiErr.Status
	default:
		return http.StatusInternalServerError
	}
}

// upstreamMessage returns the message of a Notion error envelope, or fallback
// for anything else.
func upstreamMessage(err error, fallback string) string {
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	var exchangeErr *notion.ExchangeError
	if errors.As(err, &exchangeErr) {
		return exchangeErr.Message
	}
	return fallback
}

// Messages for browser state that no longer fits in its cookies.
const (
	tooManyWorkspacesMessage = "Too many connected workspaces to store in this browser. Remove one and try again."
	tooManyMappingsMessage   = "Too many property mappings to store in this browser. Remove one and try again."
)

// saveFailure maps a cookie store error to a status and message. A full
// store is the caller's problem (400 with fullMessage); anything else is a
// 500 with fallback.
func saveFailure(err error, fullMessage, fallback string) (int, string) {
	if errors.Is(err, apperrors.ErrStorageFull) {
		return http.StatusBadRequest, fullMessage
	}
	return http.StatusInternalServerError, fallback
}

// decodeBody decodes a JSON request body. It reports false for an empty or
// malformed body.
func decodeBody(r *http.Request, out any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(out) == nil
}
