package handlers

import (
	"net/http"

	"github.com/ekaya-inc/taskboard/pkg/auth"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// BrowserStore is the per-browser state kept in cookies.
type BrowserStore interface {
	Connections(r *http.Request) []models.Connection
	SaveConnections(w http.ResponseWriter, r *http.Request, conns []models.Connection) error
	AppCredentials(r *http.Request) *models.AppCredentials
	SaveAppCredentials(w http.ResponseWriter, r *http.Request, creds models.AppCredentials) error
	Mappings(r *http.Request) models.MappingSet
	SaveMappings(w http.ResponseWriter, r *http.Request, set models.MappingSet) error
	OAuthState(r *http.Request) string
	SetOAuthState(w http.ResponseWriter, r *http.Request, state string) error
	ClearOAuthState(w http.ResponseWriter, r *http.Request) error
}

var _ BrowserStore = (*auth.CookieStore)(nil)
