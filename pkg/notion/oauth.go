package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ekaya-inc/taskboard/pkg/config"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// OAuth endpoint paths, relative to the API base URL.
const (
	AuthorizePath = "/v1/oauth/authorize"
	TokenPath     = "/v1/oauth/token"
)

// TokenGrant is the result of a successful code exchange.
type TokenGrant struct {
	AccessToken   string
	WorkspaceID   string
	WorkspaceName string
	BotID         string
}

// ExchangeError is a rejected code exchange. Message carries the provider's
// error code (for example "invalid_grant").
type ExchangeError struct {
	Message string
	Err     error
}

func (e *ExchangeError) Error() string { return e.Message }

func (e *ExchangeError) Unwrap() error { return e.Err }

// OAuth runs the Notion public-integration authorization-code flow.
type OAuth struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOAuth creates the OAuth helper.
func NewOAuth(cfg config.NotionConfig, logger *zap.Logger) *OAuth {
	return &OAuth{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.Named("oauth"),
	}
}

func (o *OAuth) config(creds models.AppCredentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   o.baseURL + AuthorizePath,
			TokenURL:  o.baseURL + TokenPath,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthCodeURL builds the consent URL. Notion requires owner=workspace.
func (o *OAuth) AuthCodeURL(creds models.AppCredentials, state string) string {
	return o.config(creds).AuthCodeURL(state, oauth2.SetAuthURLParam("owner", "workspace"))
}

// Exchange trades an authorization code for an access token, using HTTP
// Basic authentication with the app's client id and secret.
func (o *OAuth) Exchange(ctx context.Context, creds models.AppCredentials, code string) (*TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	tok, err := o.config(creds).Exchange(ctx, code)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			msg := rErr.ErrorCode
			if msg == "" {
				msg = "failed to exchange code"
			}
			status := 0
			if rErr.Response != nil {
				status = rErr.Response.StatusCode
			}
			o.logger.Warn("Code exchange rejected",
				zap.Int("status", status),
				zap.String("error_code", rErr.ErrorCode))
			return nil, &ExchangeError{Message: msg, Err: err}
		}
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	grant := &TokenGrant{
		AccessToken:   tok.AccessToken,
		WorkspaceID:   extraString(tok, "workspace_id"),
		WorkspaceName: extraString(tok, "workspace_name"),
		BotID:         extraString(tok, "bot_id"),
	}
	o.logger.Info("Exchanged OAuth code",
		zap.String("workspace_id", grant.WorkspaceID),
		zap.String("workspace_name", grant.WorkspaceName))
	return grant, nil
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}
