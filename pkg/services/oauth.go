package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

// Credential sources reported by CredentialsStatus.
const (
	CredentialSourceBrowser = "browser"
	CredentialSourceServer  = "server"
)

// CodeExchanger runs the provider side of the authorization-code flow.
type CodeExchanger interface {
	AuthCodeURL(creds models.AppCredentials, state string) string
	Exchange(ctx context.Context, creds models.AppCredentials, code string) (*notion.TokenGrant, error)
}

// AuthStart is where to send the browser and the state to remember.
type AuthStart struct {
	AuthorizeURL string
	State        string
}

// CallbackRequest carries everything the callback needs from the browser.
type CallbackRequest struct {
	Code        string
	State       string
	SavedState  string
	Credentials *models.AppCredentials
	Existing    []models.Connection
}

// CredentialsStatus tells the UI whether an OAuth app is available without
// exposing the secret.
type CredentialsStatus struct {
	HasCredentials bool    `json:"hasCredentials"`
	Source         string  `json:"source,omitempty"`
	RedirectURI    *string `json:"redirectUri"`
}

// OAuthService connects workspaces through the Notion OAuth flow.
type OAuthService interface {
	// ResolveCredentials prefers the app saved by the browser and falls back
	// to the server's app. Nil when neither is complete.
	ResolveCredentials(saved *models.AppCredentials) *models.AppCredentials
	// Start creates a state nonce and the authorize URL.
	Start(saved *models.AppCredentials) (*AuthStart, error)
	// Complete checks the state, exchanges the code and merges the new
	// connection into the existing list. It returns the updated list.
	Complete(ctx context.Context, req CallbackRequest) ([]models.Connection, error)
	// CredentialsStatus reports which OAuth app would be used.
	CredentialsStatus(saved *models.AppCredentials) CredentialsStatus
}

type oauthService struct {
	server    *models.AppCredentials
	exchanger CodeExchanger
	now       func() time.Time
	newState  func() string
	logger    *zap.Logger
}

// NewOAuthService creates an OAuth service. server is the app configured
// through the environment and may be nil.
func NewOAuthService(server *models.AppCredentials, exchanger CodeExchanger, logger *zap.Logger) OAuthService {
	return &oauthService{
		server:    server,
		exchanger: exchanger,
		now:       time.Now,
		newState:  func() string { return uuid.NewString() },
		logger:    logger.Named("oauth"),
	}
}

func (s *oauthService) ResolveCredentials(saved *models.AppCredentials) *models.AppCredentials {
	if saved != nil && saved.IsComplete() {
		return saved
	}
	if s.server != nil && s.server.IsComplete() {
		return s.server
	}
	return nil
}

func (s *oauthService) Start(saved *models.AppCredentials) (*AuthStart, error) {
	creds := s.ResolveCredentials(saved)
	if creds == nil {
		return nil, apperrors.ErrMissingAppCredentials
	}
	state := s.newState()
	return &AuthStart{
		AuthorizeURL: s.exchanger.AuthCodeURL(*creds, state),
		State:        state,
	}, nil
}

func (s *oauthService) Complete(ctx context.Context, req CallbackRequest) ([]models.Connection, error) {
	if req.SavedState == "" || subtle.ConstantTimeCompare([]byte(req.SavedState), []byte(req.State)) != 1 {
		s.logger.Warn("OAuth callback with mismatched state")
		return nil, apperrors.ErrInvalidState
	}

	creds := s.ResolveCredentials(req.Credentials)
	if creds == nil {
		return nil, apperrors.ErrMissingAppCredentials
	}

	grant, err := s.exchanger.Exchange(ctx, *creds, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	conn := models.Connection{
		WorkspaceID:   grant.WorkspaceID,
		WorkspaceName: grant.WorkspaceName,
		AccessToken:   grant.AccessToken,
		BotID:         grant.BotID,
		ConnectedAt:   s.now().UTC(),
	}

	s.logger.Info("Workspace connected through OAuth",
		zap.String("workspace_id", conn.WorkspaceID),
		zap.String("workspace_name", conn.WorkspaceName))

	return MergeConnection(req.Existing, conn), nil
}

func (s *oauthService) CredentialsStatus(saved *models.AppCredentials) CredentialsStatus {
	switch {
	case saved != nil && saved.IsComplete():
		uri := saved.RedirectURI
		return CredentialsStatus{HasCredentials: true, Source: CredentialSourceBrowser, RedirectURI: &uri}
	case s.server != nil && s.server.IsComplete():
		uri := s.server.RedirectURI
		return CredentialsStatus{HasCredentials: true, Source: CredentialSourceServer, RedirectURI: &uri}
	default:
		return CredentialsStatus{HasCredentials: false}
	}
}

var _ OAuthService = (*oauthService)(nil)
