package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/auth"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

func newTestStore() *auth.CookieStore {
	return auth.NewCookieStore("handler-test-secret", auth.CookieSettings{}, zap.NewNop())
}

// withCookiesFrom copies the cookies set on rec onto req, the way a browser
// would send them back.
func withCookiesFrom(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(c)
	}
	return req
}

// seedConnections returns a request carrying a connections cookie.
func seedConnections(t *testing.T, store *auth.CookieStore, method, target string, conns ...models.Connection) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, store.SaveConnections(rec, httptest.NewRequest(http.MethodGet, "/", nil), conns))
	return withCookiesFrom(httptest.NewRequest(method, target, nil), rec)
}

func testConnection(id, name, tasksDB string) models.Connection {
	return models.Connection{
		WorkspaceID:   id,
		WorkspaceName: name,
		AccessToken:   "secret_" + id,
		TasksDBID:     tasksDB,
	}
}

type mockWorkloadService struct {
	tasks      services.TasksResult
	people     services.PeopleResult
	seenConns  []models.Connection
	seenMapSet models.MappingSet
}

func (m *mockWorkloadService) Aggregate(ctx context.Context, conns []models.Connection, mappings models.MappingSet) (*services.Workload, error) {
	return &services.Workload{Tasks: m.tasks.Tasks}, m.tasks.Err
}

func (m *mockWorkloadService) GetTasks(ctx context.Context, conns []models.Connection, mappings models.MappingSet) services.TasksResult {
	m.seenConns, m.seenMapSet = conns, mappings
	return m.tasks
}

func (m *mockWorkloadService) GetPeople(ctx context.Context, conns []models.Connection, mappings models.MappingSet) services.PeopleResult {
	m.seenConns, m.seenMapSet = conns, mappings
	return m.people
}

type mockConnectionService struct {
	conn      *models.Connection
	connErr   error
	databases []models.Database
	dbErr     error
	seenToken string
}

func (m *mockConnectionService) ConnectWithToken(ctx context.Context, token string) (*models.Connection, error) {
	m.seenToken = token
	return m.conn, m.connErr
}

func (m *mockConnectionService) ListDatabases(ctx context.Context, conn models.Connection) ([]models.Database, error) {
	return m.databases, m.dbErr
}

type mockMappingService struct {
	services.PropertyMappingService
	props    []models.PropertyInfo
	propsErr error
}

func (m *mockMappingService) Properties(ctx context.Context, conns []models.Connection, workspaceID string) ([]models.PropertyInfo, error) {
	return m.props, m.propsErr
}

type mockOAuthService struct {
	start       *services.AuthStart
	startErr    error
	conns       []models.Connection
	completeErr error
	seenRequest services.CallbackRequest
	status      services.CredentialsStatus
}

func (m *mockOAuthService) ResolveCredentials(saved *models.AppCredentials) *models.AppCredentials {
	return saved
}

func (m *mockOAuthService) Start(saved *models.AppCredentials) (*services.AuthStart, error) {
	return m.start, m.startErr
}

func (m *mockOAuthService) Complete(ctx context.Context, req services.CallbackRequest) ([]models.Connection, error) {
	m.seenRequest = req
	return m.conns, m.completeErr
}

func (m *mockOAuthService) CredentialsStatus(saved *models.AppCredentials) services.CredentialsStatus {
	return m.status
}

type mockRoleService struct {
	grant *services.ManagerGrant
	err   error
}

func (m *mockRoleService) VerifyManager(secret string) (*services.ManagerGrant, error) {
	return m.grant, m.err
}

// withBody replaces the body of req.
func withBody(req *http.Request, body string) *http.Request {
	r := req.Clone(req.Context())
	r.Body = io.NopCloser(strings.NewReader(body))
	r.ContentLength = int64(len(body))
	return r
}
