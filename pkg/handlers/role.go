package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/auth"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

// VerifyRoleRequest is the body of POST /api/role/verify.
type VerifyRoleRequest struct {
	Secret string `json:"secret"`
}

// VerifyRoleResponse carries the manager token. The same token is set as an
// HttpOnly cookie.
type VerifyRoleResponse struct {
	OK        bool      `json:"ok"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RoleHandler unlocks the manager role.
type RoleHandler struct {
	roles          services.RoleService
	cookieSettings auth.CookieSettings
	now            func() time.Time
	logger         *zap.Logger
}

// NewRoleHandler creates a new role handler.
func NewRoleHandler(roles services.RoleService, cookieSettings auth.CookieSettings, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{
		roles:          roles,
		cookieSettings: cookieSettings,
		now:            time.Now,
		logger:         logger,
	}
}

// RegisterRoutes registers the role routes on the given mux.
func (h *RoleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/role/verify", h.Verify)
}

// Verify handles POST /api/role/verify.
func (h *RoleHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRoleRequest
	if !decodeBody(r, &req) || req.Secret == "" {
		h.fail(w, http.StatusBadRequest, "Secret is required")
		return
	}

	grant, err := h.roles.VerifyManager(req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrManagerSecretNotConfigured):
			h.fail(w, http.StatusInternalServerError, "Manager secret not configured")
		case errors.Is(err, apperrors.ErrInvalidManagerSecret):
			h.fail(w, http.StatusUnauthorized, "Invalid manager secret")
		default:
			h.logger.Error("Failed to issue manager token", zap.Error(err))
			h.fail(w, http.StatusInternalServerError, "Failed to issue manager token")
		}
		return
	}

	maxAge := int(grant.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.ManagerCookieName,
		Value:    grant.Token,
		Path:     "/",
		Domain:   h.cookieSettings.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSettings.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	response := VerifyRoleResponse{OK: true, Token: grant.Token, ExpiresAt: grant.ExpiresAt}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *RoleHandler) fail(w http.ResponseWriter, status int, message string) {
	if err := ErrorResponse(w, status, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
