package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/config"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// Identity fallbacks used when users/me cannot be read.
const (
	FallbackWorkspaceID   = "workspace"
	FallbackWorkspaceName = "Notion Workspace"
	UntitledDatabase      = "Untitled"
)

const notionAPIHost = "api.notion.com"

// Title patterns used to pick databases for a manually connected token.
var (
	tasksPatterns    = []*regexp.Regexp{regexp.MustCompile(`task`), regexp.MustCompile(`todo`)}
	projectsPatterns = []*regexp.Regexp{regexp.MustCompile(`project`)}
	sprintsPatterns  = []*regexp.Regexp{regexp.MustCompile(`sprint`), regexp.MustCompile(`iteration`), regexp.MustCompile(`cycle`)}
)

// Identity is the workspace a token belongs to.
type Identity struct {
	WorkspaceID   string
	WorkspaceName string
}

// Discovery lists databases, reads database schemas and identifies tokens.
type Discovery struct {
	httpClient *http.Client
	version    string
	logger     *zap.Logger
}

// NewDiscovery creates a discovery client. When the configured API base URL
// is not the public Notion host, requests are redirected to it.
func NewDiscovery(cfg config.NotionConfig, logger *zap.Logger) *Discovery {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	if base, err := url.Parse(cfg.APIBaseURL); err == nil && base.Host != "" && base.Host != notionAPIHost {
		httpClient.Transport = &rewriteTransport{base: base, next: http.DefaultTransport}
	}
	return &Discovery{
		httpClient: httpClient,
		version:    cfg.APIVersion,
		logger:     logger.Named("discovery"),
	}
}

func (d *Discovery) client(token string) *notionapi.Client {
	return notionapi.NewClient(
		notionapi.Token(token),
		notionapi.WithHTTPClient(d.httpClient),
		notionapi.WithVersion(d.version),
	)
}

// ListDatabases returns every database shared with the integration.
func (d *Discovery) ListDatabases(ctx context.Context, token string) ([]models.Database, error) {
	resp, err := d.client(token).Search.Do(ctx, &notionapi.SearchRequest{
		Filter:   notionapi.SearchFilter{Property: "object", Value: "database"},
		PageSize: 100,
	})
	if err != nil {
		return nil, fromSDKError("list databases", err)
	}

	databases := make([]models.Database, 0, len(resp.Results))
	for _, obj := range resp.Results {
		db, ok := obj.(*notionapi.Database)
		if !ok || db.ID == "" {
			continue
		}
		title := strings.TrimSpace(plainText(db.Title))
		if title == "" {
			title = UntitledDatabase
		}
		databases = append(databases, models.Database{ID: string(db.ID), Title: title})
	}

	d.logger.Debug("Listed databases", zap.Int("count", len(databases)))
	return databases, nil
}

// DatabaseProperties returns the columns of a database, sorted by name.
func (d *Discovery) DatabaseProperties(ctx context.Context, token, databaseID string) ([]models.PropertyInfo, error) {
	db, err := d.client(token).Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		return nil, fromSDKError("get database", err)
	}

	props := make([]models.PropertyInfo, 0, len(db.Properties))
	for name, cfg := range db.Properties {
		typ := "unknown"
		if cfg != nil && cfg.GetType() != "" {
			typ = string(cfg.GetType())
		}
		props = append(props, models.PropertyInfo{Name: name, Type: typ})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props, nil
}

// Identify resolves the workspace of a token from users/me. Failures are not
// fatal: the fallback identity is returned instead.
func (d *Discovery) Identify(ctx context.Context, token string) Identity {
	id := Identity{WorkspaceID: FallbackWorkspaceID, WorkspaceName: FallbackWorkspaceName}

	me, err := d.client(token).User.Me(ctx)
	if err != nil {
		d.logger.Debug("users/me failed, using fallback identity", zap.Error(err))
		return id
	}

	if me.ID != "" {
		id.WorkspaceID = string(me.ID)
	}
	switch {
	case me.Name != "":
		id.WorkspaceName = me.Name
	case me.Bot != nil && me.Bot.WorkspaceName != "":
		id.WorkspaceName = me.Bot.WorkspaceName
	}
	return id
}

// DetectDatabases picks the tasks, projects and sprints databases by title.
// The first database whose lowercased title matches wins for each role.
func DetectDatabases(databases []models.Database) models.DetectedDatabases {
	pick := func(patterns []*regexp.Regexp) string {
		for _, db := range databases {
			title := strings.ToLower(db.Title)
			for _, p := range patterns {
				if p.MatchString(title) {
					return db.ID
				}
			}
		}
		return ""
	}
	return models.DetectedDatabases{
		TasksDBID:    pick(tasksPatterns),
		ProjectsDBID: pick(projectsPatterns),
		SprintsDBID:  pick(sprintsPatterns),
	}
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, t := range rt {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

// fromSDKError converts notionapi errors to *APIError so callers see one
// error type for upstream failures.
func fromSDKError(op string, err error) error {
	var sdkErr *notionapi.Error
	if errors.As(err, &sdkErr) {
		return &APIError{Status: sdkErr.Status, Code: string(sdkErr.Code), Message: sdkErr.Message}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// rewriteTransport sends requests addressed to the public Notion host to a
// different base URL.
type rewriteTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != notionAPIHost {
		return t.next.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.Host = t.base.Host
	return t.next.RoundTrip(out)
}
