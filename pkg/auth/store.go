package auth

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// Cookie names. Each value lives in its own cookie so a corrupt or oversized
// one does not take the others with it.
const (
	ConnectionsCookie    = "notion_connections"
	AppCredentialsCookie = "notion_app_credentials"
	MappingsCookie       = "notion_property_mapping"
	OAuthStateCookie     = "notion_oauth_state"
)

// Cookie lifetimes in seconds.
const (
	LongLivedMaxAge  = 60 * 60 * 24 * 30
	OAuthStateMaxAge = 60 * 10
)

// Session value keys. partsKey is set on the first cookie of a value split
// across several cookies.
const (
	valueKey = "v"
	partsKey = "p"
)

// A JSON payload is split into chunks of at most chunkSize bytes, each in its
// own cookie (name, name_1, name_2...). chunkSize keeps one encrypted cookie
// under the 4096-byte browser limit.
const (
	chunkSize = 1800
	maxChunks = 4
)

// storedConnection is the compact cookie form of a connection. Only the
// fields the dashboard reads are kept.
type storedConnection struct {
	WorkspaceID   string `json:"w"`
	WorkspaceName string `json:"n"`
	AccessToken   string `json:"t"`
	TasksDBID     string `json:"td,omitempty"`
	ProjectsDBID  string `json:"pd,omitempty"`
	SprintsDBID   string `json:"sd,omitempty"`
	ConnectedAt   int64  `json:"c,omitempty"`
}

func toStored(c models.Connection) storedConnection {
	sc := storedConnection{
		WorkspaceID:   c.WorkspaceID,
		WorkspaceName: c.WorkspaceName,
		AccessToken:   c.AccessToken,
		TasksDBID:     c.TasksDBID,
		ProjectsDBID:  c.ProjectsDBID,
		SprintsDBID:   c.SprintsDBID,
	}
	if !c.ConnectedAt.IsZero() {
		sc.ConnectedAt = c.ConnectedAt.Unix()
	}
	return sc
}

func (sc storedConnection) connection() models.Connection {
	c := models.Connection{
		WorkspaceID:   sc.WorkspaceID,
		WorkspaceName: sc.WorkspaceName,
		AccessToken:   sc.AccessToken,
		TasksDBID:     sc.TasksDBID,
		ProjectsDBID:  sc.ProjectsDBID,
		SprintsDBID:   sc.SprintsDBID,
	}
	if sc.ConnectedAt != 0 {
		c.ConnectedAt = time.Unix(sc.ConnectedAt, 0).UTC()
	}
	return c
}

// CookieStore keeps the per-browser state: connected workspaces, OAuth app
// credentials, property mappings and the OAuth state nonce. Cookies are
// signed and encrypted with keys derived from the session secret.
type CookieStore struct {
	store  *sessions.CookieStore
	logger *zap.Logger
}

// NewCookieStore creates a store. The secret can be any passphrase; it is
// SHA-256 hashed to derive the signing and encryption keys, so it must be
// consistent across restarts and across servers behind a load balancer.
func NewCookieStore(secret string, settings CookieSettings, logger *zap.Logger) *CookieStore {
	hashKey := sha256.Sum256([]byte(secret))
	blockKey := sha256.Sum256([]byte("taskboard-cookie-encryption:" + secret))

	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   LongLivedMaxAge,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &CookieStore{
		store:  store,
		logger: logger.Named("cookies"),
	}
}

// Connections returns the stored connections. Entries missing a workspace
// id, name or token are dropped; an unreadable cookie reads as empty.
func (s *CookieStore) Connections(r *http.Request) []models.Connection {
	var stored []storedConnection
	if !s.read(r, ConnectionsCookie, &stored) {
		return []models.Connection{}
	}
	valid := make([]models.Connection, 0, len(stored))
	for _, sc := range stored {
		if c := sc.connection(); c.IsValid() {
			valid = append(valid, c)
		}
	}
	return valid
}

// SaveConnections replaces the stored connections. An empty list deletes
// the cookie. It fails with apperrors.ErrStorageFull when the list does not
// fit in the browser's cookies.
func (s *CookieStore) SaveConnections(w http.ResponseWriter, r *http.Request, conns []models.Connection) error {
	if len(conns) == 0 {
		return s.clear(w, r, ConnectionsCookie)
	}
	stored := make([]storedConnection, 0, len(conns))
	for _, c := range conns {
		stored = append(stored, toStored(c))
	}
	return s.write(w, r, ConnectionsCookie, stored, LongLivedMaxAge)
}

// AppCredentials returns the OAuth app saved by this browser, or nil when
// none is saved or the saved one is incomplete.
func (s *CookieStore) AppCredentials(r *http.Request) *models.AppCredentials {
	var creds models.AppCredentials
	if !s.read(r, AppCredentialsCookie, &creds) || !creds.IsComplete() {
		return nil
	}
	return &creds
}

// SaveAppCredentials stores the OAuth app for this browser.
func (s *CookieStore) SaveAppCredentials(w http.ResponseWriter, r *http.Request, creds models.AppCredentials) error {
	return s.write(w, r, AppCredentialsCookie, creds, LongLivedMaxAge)
}

// Mappings returns the property mappings of every workspace, sanitized.
func (s *CookieStore) Mappings(r *http.Request) models.MappingSet {
	var stored models.MappingSet
	if !s.read(r, MappingsCookie, &stored) {
		return models.MappingSet{}
	}
	out := make(models.MappingSet, len(stored))
	for workspaceID, m := range stored {
		out[workspaceID] = m.Sanitize()
	}
	return out
}

// SaveMappings replaces the stored property mappings.
func (s *CookieStore) SaveMappings(w http.ResponseWriter, r *http.Request, set models.MappingSet) error {
	return s.write(w, r, MappingsCookie, set, LongLivedMaxAge)
}

// OAuthState returns the pending OAuth state nonce, or "".
func (s *CookieStore) OAuthState(r *http.Request) string {
	var state string
	if !s.read(r, OAuthStateCookie, &state) {
		return ""
	}
	return state
}

// SetOAuthState stores the OAuth state nonce for ten minutes.
func (s *CookieStore) SetOAuthState(w http.ResponseWriter, r *http.Request, state string) error {
	return s.write(w, r, OAuthStateCookie, state, OAuthStateMaxAge)
}

// ClearOAuthState deletes the OAuth state cookie.
func (s *CookieStore) ClearOAuthState(w http.ResponseWriter, r *http.Request) error {
	return s.clear(w, r, OAuthStateCookie)
}

// read decodes the JSON payload of a cookie, joining its chunks, into out.
// It reports false when a cookie is absent, fails verification or holds
// malformed JSON.
func (s *CookieStore) read(r *http.Request, name string, out any) bool {
	session, err := s.store.Get(r, name)
	if err != nil {
		s.logger.Debug("Ignoring unreadable cookie",
			zap.String("cookie", name),
			zap.Error(err))
		return false
	}
	first, ok := session.Values[valueKey].(string)
	if !ok || first == "" {
		return false
	}

	var b strings.Builder
	b.WriteString(first)
	parts, _ := session.Values[partsKey].(int)
	for i := 1; i < parts; i++ {
		chunk, err := s.store.Get(r, chunkName(name, i))
		part, ok := chunk.Values[valueKey].(string)
		if err != nil || !ok {
			s.logger.Debug("Ignoring cookie with a missing chunk",
				zap.String("cookie", name),
				zap.Int("chunk", i))
			return false
		}
		b.WriteString(part)
	}

	if err := json.Unmarshal([]byte(b.String()), out); err != nil {
		s.logger.Debug("Ignoring malformed cookie payload",
			zap.String("cookie", name),
			zap.Error(err))
		return false
	}
	return true
}

func (s *CookieStore) write(w http.ResponseWriter, r *http.Request, name string, value any, maxAge int) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	chunks := splitChunks(string(payload))
	if len(chunks) > maxChunks {
		s.logger.Warn("Cookie payload exceeds browser storage",
			zap.String("cookie", name),
			zap.Int("bytes", len(payload)))
		return fmt.Errorf("%s is %d bytes: %w", name, len(payload), apperrors.ErrStorageFull)
	}

	for i, chunk := range chunks {
		cookieName := chunkName(name, i)
		// Get returns a fresh session alongside a decode error, which is fine
		// here since the value is being replaced.
		session, _ := s.store.Get(r, cookieName)
		session.Values = map[interface{}]interface{}{valueKey: chunk}
		if i == 0 {
			session.Values[partsKey] = len(chunks)
		}
		session.Options.MaxAge = maxAge
		if err := session.Save(r, w); err != nil {
			return fmt.Errorf("failed to save %s: %w", cookieName, err)
		}
	}
	return s.clearChunks(w, r, name, len(chunks))
}

func (s *CookieStore) clear(w http.ResponseWriter, r *http.Request, name string) error {
	session, _ := s.store.Get(r, name)
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear %s: %w", name, err)
	}
	return s.clearChunks(w, r, name, 1)
}

// clearChunks deletes the chunk cookies from index from onwards that the
// browser still sends.
func (s *CookieStore) clearChunks(w http.ResponseWriter, r *http.Request, name string, from int) error {
	for i := from; i < maxChunks; i++ {
		cookieName := chunkName(name, i)
		if _, err := r.Cookie(cookieName); err != nil {
			continue
		}
		session, _ := s.store.Get(r, cookieName)
		session.Values = map[interface{}]interface{}{}
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			return fmt.Errorf("failed to clear %s: %w", cookieName, err)
		}
	}
	return nil
}

func chunkName(name string, i int) string {
	if i == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, i)
}

func splitChunks(payload string) []string {
	chunks := make([]string, 0, len(payload)/chunkSize+1)
	for len(payload) > chunkSize {
		chunks = append(chunks, payload[:chunkSize])
		payload = payload[chunkSize:]
	}
	return append(chunks, payload)
}
