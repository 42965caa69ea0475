package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/auth"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/notion"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

func newAuthMux(svc *mockOAuthService, store *auth.CookieStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewNotionAuthHandler(svc, store, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestNotionAuthHandler_Start(t *testing.T) {
	store := newTestStore()
	svc := &mockOAuthService{start: &services.AuthStart{
		AuthorizeURL: "https://api.notion.com/v1/oauth/authorize?state=nonce-1",
		State:        "nonce-1",
	}}
	mux := newAuthMux(svc, store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notion/auth/start", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, svc.start.AuthorizeURL, rec.Header().Get("Location"))

	state := store.OAuthState(withCookiesFrom(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	assert.Equal(t, "nonce-1", state)
}

func TestNotionAuthHandler_Start_MissingCredentials(t *testing.T) {
	mux := newAuthMux(&mockOAuthService{startErr: apperrors.ErrMissingAppCredentials}, newTestStore())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notion/auth/start", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing Notion client credentials")
}

func TestNotionAuthHandler_Callback(t *testing.T) {
	store := newTestStore()
	conn := testConnection("ws-1", "Acme", "")
	svc := &mockOAuthService{conns: []models.Connection{conn}}
	mux := newAuthMux(svc, store)

	stateRec := httptest.NewRecorder()
	require.NoError(t, store.SetOAuthState(stateRec, httptest.NewRequest(http.MethodGet, "/", nil), "nonce-1"))

	req := withCookiesFrom(httptest.NewRequest(http.MethodGet, "/api/notion/auth/callback?code=abc&state=nonce-1", nil), stateRec)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, ConnectionsPagePath, rec.Header().Get("Location"))
	assert.Equal(t, "abc", svc.seenRequest.Code)
	assert.Equal(t, "nonce-1", svc.seenRequest.State)
	assert.Equal(t, "nonce-1", svc.seenRequest.SavedState)

	next := withCookiesFrom(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	saved := store.Connections(next)
	require.Len(t, saved, 1)
	assert.Equal(t, "ws-1", saved[0].WorkspaceID)

	var stateCleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.OAuthStateCookie && c.MaxAge < 0 {
			stateCleared = true
		}
	}
	assert.True(t, stateCleared, "state cookie should be cleared after a successful callback")
}

func TestNotionAuthHandler_Callback_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "provider error",
			target:     "/api/notion/auth/callback?error=access_denied",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Notion OAuth error: access_denied",
		},
		{
			name:       "missing code",
			target:     "/api/notion/auth/callback?state=nonce-1",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Missing code or state in callback",
		},
		{
			name:       "state mismatch",
			target:     "/api/notion/auth/callback?code=abc&state=forged",
			err:        apperrors.ErrInvalidState,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid OAuth state",
		},
		{
			name:       "no app credentials",
			target:     "/api/notion/auth/callback?code=abc&state=nonce-1",
			err:        apperrors.ErrMissingAppCredentials,
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Missing Notion app credentials",
		},
		{
			name:       "code rejected",
			target:     "/api/notion/auth/callback?code=abc&state=nonce-1",
			err:        fmt.Errorf("failed to exchange code: %w", &notion.ExchangeError{Message: "invalid_grant"}),
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid_grant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newAuthMux(&mockOAuthService{completeErr: tt.err}, newTestStore())

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestNotionAuthHandler_Credentials(t *testing.T) {
	store := newTestStore()
	uri := "http://localhost:3000/api/notion/auth/callback"
	svc := &mockOAuthService{status: services.CredentialsStatus{
		HasCredentials: true,
		Source:         services.CredentialSourceBrowser,
		RedirectURI:    &uri,
	}}
	mux := newAuthMux(svc, store)

	post := httptest.NewRequest(http.MethodPost, "/api/notion/auth/credentials",
		strings.NewReader(`{"clientId":"cid","clientSecret":"csecret","redirectUri":"`+uri+`"}`))
	postRec := httptest.NewRecorder()
	mux.ServeHTTP(postRec, post)
	require.Equal(t, http.StatusOK, postRec.Code)

	saved := store.AppCredentials(withCookiesFrom(httptest.NewRequest(http.MethodGet, "/", nil), postRec))
	require.NotNil(t, saved)
	assert.Equal(t, "csecret", saved.ClientSecret)

	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, withCookiesFrom(httptest.NewRequest(http.MethodGet, "/api/notion/auth/credentials", nil), postRec))
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.NotContains(t, getRec.Body.String(), "csecret")

	var body map[string]any
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["hasCredentials"])
	assert.Equal(t, "browser", body["source"])
	assert.Equal(t, uri, body["redirectUri"])
}

func TestNotionAuthHandler_SaveCredentials_Validation(t *testing.T) {
	mux := newAuthMux(&mockOAuthService{}, newTestStore())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notion/auth/credentials",
		strings.NewReader(`{"clientId":"cid","clientSecret":"  ","redirectUri":"http://x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "clientId, clientSecret, and redirectUri are required")
}

func TestNotionAuthHandler_GetCredentials_None(t *testing.T) {
	mux := newAuthMux(&mockOAuthService{}, newTestStore())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notion/auth/credentials", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"hasCredentials":false,"redirectUri":null}`, rec.Body.String())
}
