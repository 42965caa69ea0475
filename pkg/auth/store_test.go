package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

func newTestStore(secret string) *CookieStore {
	return NewCookieStore(secret, CookieSettings{Secure: false}, zap.NewNop())
}

// roundTrip writes with fn and returns a new request carrying the cookies
// the response set.
func roundTrip(t *testing.T, fn func(w http.ResponseWriter, r *http.Request)) (*http.Request, *http.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	resp := rec.Result()

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range resp.Cookies() {
		next.AddCookie(c)
	}
	return next, resp
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCookieStore_Connections_RoundTrip(t *testing.T) {
	store := newTestStore("secret")
	conns := []models.Connection{
		{WorkspaceID: "ws-1", WorkspaceName: "Acme", AccessToken: "secret_a", TasksDBID: "db-1", ConnectedAt: time.Unix(1700000000, 0).UTC()},
		{WorkspaceID: "ws-2", WorkspaceName: "Globex", AccessToken: "secret_b"},
	}

	req, resp := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveConnections(w, r, conns))
	})

	cookie := findCookie(resp, ConnectionsCookie)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, LongLivedMaxAge, cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotContains(t, cookie.Value, "secret_a", "cookie value must be encrypted")

	assert.Equal(t, conns, store.Connections(req))
}

func realisticConnections(n int) []models.Connection {
	conns := make([]models.Connection, 0, n)
	for i := 0; i < n; i++ {
		conns = append(conns, models.Connection{
			WorkspaceID:   fmt.Sprintf("0d9c2f3e-7a1b-4c5d-9e8f-%012d", i),
			WorkspaceName: fmt.Sprintf("Engineering Workspace %d", i),
			AccessToken:   fmt.Sprintf("ntn_%046d", i),
			BotID:         fmt.Sprintf("b0b0b0b0-1111-2222-3333-%012d", i),
			TasksDBID:     fmt.Sprintf("1a2b3c4d-0000-1111-2222-%012d", i),
			ProjectsDBID:  fmt.Sprintf("5e6f7a8b-0000-1111-2222-%012d", i),
			SprintsDBID:   fmt.Sprintf("9c0d1e2f-0000-1111-2222-%012d", i),
			ConnectedAt:   time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		})
	}
	return conns
}

func TestCookieStore_Connections_ManyWorkspaces(t *testing.T) {
	store := newTestStore("secret")
	conns := realisticConnections(12)

	req, resp := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveConnections(w, r, conns))
	})

	for _, c := range resp.Cookies() {
		assert.LessOrEqual(t, len(c.String()), 4096, "cookie %s", c.Name)
	}
	assert.NotNil(t, findCookie(resp, ConnectionsCookie+"_1"), "large lists span several cookies")

	got := store.Connections(req)
	require.Len(t, got, 12)
	for i, c := range got {
		want := conns[i]
		want.BotID = ""
		assert.Equal(t, want, c)
	}
}

func TestCookieStore_Connections_StorageFull(t *testing.T) {
	store := newTestStore("secret")

	rec := httptest.NewRecorder()
	err := store.SaveConnections(rec, httptest.NewRequest(http.MethodGet, "/", nil), realisticConnections(60))

	require.ErrorIs(t, err, apperrors.ErrStorageFull)
	assert.Empty(t, rec.Result().Cookies())
}

func TestCookieStore_Connections_ShrinkClearsStaleChunks(t *testing.T) {
	store := newTestStore("secret")

	req, _ := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveConnections(w, r, realisticConnections(12)))
	})

	rec := httptest.NewRecorder()
	require.NoError(t, store.SaveConnections(rec, req, realisticConnections(1)))

	stale := findCookie(rec.Result(), ConnectionsCookie+"_1")
	require.NotNil(t, stale)
	assert.Less(t, stale.MaxAge, 0)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			next.AddCookie(c)
		}
	}
	assert.Len(t, store.Connections(next), 1)
}

func TestCookieStore_Connections_MissingChunkReadsAsEmpty(t *testing.T) {
	store := newTestStore("secret")

	_, resp := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveConnections(w, r, realisticConnections(12)))
	})

	partial := httptest.NewRequest(http.MethodGet, "/", nil)
	partial.AddCookie(findCookie(resp, ConnectionsCookie))

	assert.Empty(t, store.Connections(partial))
}

func TestCookieStore_Connections_FiltersInvalid(t *testing.T) {
	store := newTestStore("secret")
	conns := []models.Connection{
		{WorkspaceID: "ws-1", WorkspaceName: "Acme", AccessToken: "secret_a"},
		{WorkspaceID: "ws-2", WorkspaceName: "No token"},
		{WorkspaceName: "No id", AccessToken: "secret_c"},
	}

	req, _ := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveConnections(w, r, conns))
	})

	got := store.Connections(req)
	require.Len(t, got, 1)
	assert.Equal(t, "ws-1", got[0].WorkspaceID)
}

func TestCookieStore_EmptyAndCorrupt(t *testing.T) {
	store := newTestStore("secret")

	empty := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, store.Connections(empty))
	assert.Nil(t, store.AppCredentials(empty))
	assert.Empty(t, store.Mappings(empty))
	assert.Equal(t, "", store.OAuthState(empty))

	corrupt := httptest.NewRequest(http.MethodGet, "/", nil)
	corrupt.AddCookie(&http.Cookie{Name: ConnectionsCookie, Value: "not-a-valid-cookie"})
	corrupt.AddCookie(&http.Cookie{Name: MappingsCookie, Value: "%%%"})
	assert.Empty(t, store.Connections(corrupt))
	assert.Empty(t, store.Mappings(corrupt))
}

func TestCookieStore_RejectsCookiesFromOtherSecret(t *testing.T) {
	writer := newTestStore("one")
	reader := newTestStore("two")

	req, _ := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, writer.SaveConnections(w, r, []models.Connection{
			{WorkspaceID: "ws-1", WorkspaceName: "Acme", AccessToken: "secret_a"},
		}))
	})

	assert.Empty(t, reader.Connections(req))
}

func TestCookieStore_SaveEmptyConnectionsDeletesCookie(t *testing.T) {
	store := newTestStore("secret")

	_, resp := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveConnections(w, r, nil))
	})

	cookie := findCookie(resp, ConnectionsCookie)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestCookieStore_AppCredentials(t *testing.T) {
	store := newTestStore("secret")
	creds := models.AppCredentials{ClientID: "cid", ClientSecret: "csecret", RedirectURI: "http://localhost:3000/api/notion/auth/callback"}

	req, _ := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveAppCredentials(w, r, creds))
	})

	got := store.AppCredentials(req)
	require.NotNil(t, got)
	assert.Equal(t, creds, *got)
}

func TestCookieStore_AppCredentials_IncompleteReadsAsNil(t *testing.T) {
	store := newTestStore("secret")

	req, _ := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveAppCredentials(w, r, models.AppCredentials{ClientID: "cid"}))
	})

	assert.Nil(t, store.AppCredentials(req))
}

func TestCookieStore_Mappings_SanitizedOnRead(t *testing.T) {
	store := newTestStore("secret")
	set := models.MappingSet{
		"ws-1": {models.FieldStatus: "  Stage  ", models.FieldSprint: "   ", models.Field("bogus"): "X"},
	}

	req, _ := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SaveMappings(w, r, set))
	})

	got := store.Mappings(req)
	assert.Equal(t, models.PropertyMapping{models.FieldStatus: "Stage"}, got.For("ws-1"))
}

func TestCookieStore_OAuthState(t *testing.T) {
	store := newTestStore("secret")

	req, resp := roundTrip(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, store.SetOAuthState(w, r, "nonce-123"))
	})

	cookie := findCookie(resp, OAuthStateCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, OAuthStateMaxAge, cookie.MaxAge)
	assert.Equal(t, "nonce-123", store.OAuthState(req))

	rec := httptest.NewRecorder()
	require.NoError(t, store.ClearOAuthState(rec, req))
	cleared := findCookie(rec.Result(), OAuthStateCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}
