package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

// ConnectionsPagePath is where the browser lands after an OAuth callback.
const ConnectionsPagePath = "/connections"

// CredentialsResponse reports which OAuth app would be used.
type CredentialsResponse struct {
	OK bool `json:"ok"`
	services.CredentialsStatus
}

// SaveCredentialsRequest is the body of POST /api/notion/auth/credentials.
type SaveCredentialsRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
}

// NotionAuthHandler runs the Notion OAuth flow and manages the OAuth app
// credentials saved by a browser.
type NotionAuthHandler struct {
	oauth  services.OAuthService
	store  BrowserStore
	logger *zap.Logger
}

// NewNotionAuthHandler creates a new Notion OAuth handler.
func NewNotionAuthHandler(oauth services.OAuthService, store BrowserStore, logger *zap.Logger) *NotionAuthHandler {
	return &NotionAuthHandler{
		oauth:  oauth,
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers the OAuth routes on the given mux.
func (h *NotionAuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notion/auth/start", h.Start)
	mux.HandleFunc("GET /api/notion/auth/callback", h.Callback)
	mux.HandleFunc("GET /api/notion/auth/credentials", h.GetCredentials)
	mux.HandleFunc("POST /api/notion/auth/credentials", h.SaveCredentials)
}

// Start handles GET /api/notion/auth/start.
// Remembers a fresh state nonce and redirects to Notion's authorize page.
func (h *NotionAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	start, err := h.oauth.Start(h.store.AppCredentials(r))
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingAppCredentials) {
			h.fail(w, http.StatusInternalServerError,
				"Missing Notion client credentials. Save them on the Connections page or set env vars.")
			return
		}
		h.logger.Error("Failed to start OAuth flow", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, "Failed to start OAuth flow")
		return
	}

	if err := h.store.SetOAuthState(w, r, start.State); err != nil {
		h.logger.Error("Failed to save OAuth state", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, "Failed to start OAuth flow")
		return
	}

	http.Redirect(w, r, start.AuthorizeURL, http.StatusTemporaryRedirect)
}

// Callback handles GET /api/notion/auth/callback.
func (h *NotionAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Info("Notion OAuth denied", zap.String("error", providerErr))
		h.fail(w, http.StatusBadRequest, "Notion OAuth error: "+providerErr)
		return
	}

	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		h.fail(w, http.StatusBadRequest, "Missing code or state in callback")
		return
	}

	conns, err := h.oauth.Complete(r.Context(), services.CallbackRequest{
		Code:        code,
		State:       state,
		SavedState:  h.store.OAuthState(r),
		Credentials: h.store.AppCredentials(r),
		Existing:    h.store.Connections(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidState):
			h.fail(w, http.StatusBadRequest, "Invalid OAuth state")
		case errors.Is(err, apperrors.ErrMissingAppCredentials):
			h.fail(w, http.StatusInternalServerError, "Missing Notion app credentials")
		default:
			h.logger.Error("OAuth callback failed", zap.String("error", logging.SanitizeError(err)))
			h.fail(w, StatusForError(err), upstreamMessage(err, "Failed to exchange code"))
		}
		return
	}

	if err := h.store.SaveConnections(w, r, conns); err != nil {
		h.logger.Error("Failed to save connections", zap.Error(err))
		status, message := saveFailure(err, tooManyWorkspacesMessage, "Failed to save connection")
		h.fail(w, status, message)
		return
	}
	if err := h.store.ClearOAuthState(w, r); err != nil {
		h.logger.Warn("Failed to clear OAuth state", zap.Error(err))
	}

	http.Redirect(w, r, ConnectionsPagePath, http.StatusTemporaryRedirect)
}

// GetCredentials handles GET /api/notion/auth/credentials.
// The client secret is never returned.
func (h *NotionAuthHandler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	status := h.oauth.CredentialsStatus(h.store.AppCredentials(r))
	if err := WriteJSON(w, http.StatusOK, CredentialsResponse{OK: true, CredentialsStatus: status}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SaveCredentials handles POST /api/notion/auth/credentials.
func (h *NotionAuthHandler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	var req SaveCredentialsRequest
	decoded := decodeBody(r, &req)
	creds := models.AppCredentials{
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: strings.TrimSpace(req.ClientSecret),
		RedirectURI:  strings.TrimSpace(req.RedirectURI),
	}
	if !decoded || !creds.IsComplete() {
		h.fail(w, http.StatusBadRequest, "clientId, clientSecret, and redirectUri are required")
		return
	}

	if err := h.store.SaveAppCredentials(w, r, creds); err != nil {
		h.logger.Error("Failed to save app credentials", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, "Failed to save credentials")
		return
	}

	if err := WriteJSON(w, http.StatusOK, Envelope{OK: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *NotionAuthHandler) fail(w http.ResponseWriter, status int, message string) {
	if err := ErrorResponse(w, status, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
