package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

// WorkspaceDiscovery inspects what a token can see.
type WorkspaceDiscovery interface {
	Identify(ctx context.Context, token string) notion.Identity
	ListDatabases(ctx context.Context, token string) ([]models.Database, error)
	DatabaseProperties(ctx context.Context, token, databaseID string) ([]models.PropertyInfo, error)
}

// MergeConnection puts conn at the front of the list and drops any older
// entry for the same workspace.
func MergeConnection(existing []models.Connection, conn models.Connection) []models.Connection {
	merged := make([]models.Connection, 0, len(existing)+1)
	merged = append(merged, conn)
	for _, c := range existing {
		if c.WorkspaceID == conn.WorkspaceID {
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// NormalizeConnections drops invalid entries and keeps only the first
// occurrence of each workspace, which is the most recently added one.
func NormalizeConnections(conns []models.Connection) []models.Connection {
	seen := make(map[string]bool, len(conns))
	out := make([]models.Connection, 0, len(conns))
	for _, c := range conns {
		if !c.IsValid() || seen[c.WorkspaceID] {
			continue
		}
		seen[c.WorkspaceID] = true
		out = append(out, c)
	}
	return out
}

// UpdateDatabases sets the database selection of one workspace. It reports
// false when the workspace is not in the list.
func UpdateDatabases(existing []models.Connection, workspaceID string, dbs models.DetectedDatabases) ([]models.Connection, bool) {
	updated := make([]models.Connection, len(existing))
	found := false
	for i, c := range existing {
		if c.WorkspaceID == workspaceID {
			c.TasksDBID = dbs.TasksDBID
			c.ProjectsDBID = dbs.ProjectsDBID
			c.SprintsDBID = dbs.SprintsDBID
			found = true
		}
		updated[i] = c
	}
	return updated, found
}

// RemoveConnection drops a workspace from the list.
func RemoveConnection(existing []models.Connection, workspaceID string) []models.Connection {
	out := make([]models.Connection, 0, len(existing))
	for _, c := range existing {
		if c.WorkspaceID != workspaceID {
			out = append(out, c)
		}
	}
	return out
}

// FindConnection returns the connection of a workspace.
func FindConnection(conns []models.Connection, workspaceID string) (models.Connection, bool) {
	for _, c := range conns {
		if c.WorkspaceID == workspaceID {
			return c, true
		}
	}
	return models.Connection{}, false
}

// Summaries strips access tokens for display.
func Summaries(conns []models.Connection) []models.ConnectionSummary {
	out := make([]models.ConnectionSummary, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Summary())
	}
	return out
}

// ConnectionService creates connections and inspects connected workspaces.
type ConnectionService interface {
	// ConnectWithToken identifies the workspace of an integration token and
	// picks its tasks, projects and sprints databases by title. It fails with
	// apperrors.ErrDatabasesNotDetected when any of the three is missing.
	ConnectWithToken(ctx context.Context, token string) (*models.Connection, error)
	// ListDatabases returns the databases visible to a connection.
	ListDatabases(ctx context.Context, conn models.Connection) ([]models.Database, error)
}

type connectionService struct {
	discovery WorkspaceDiscovery
	now       func() time.Time
	logger    *zap.Logger
}

// NewConnectionService creates a connection service.
func NewConnectionService(discovery WorkspaceDiscovery, logger *zap.Logger) ConnectionService {
	return &connectionService{
		discovery: discovery,
		now:       time.Now,
		logger:    logger.Named("connections"),
	}
}

func (s *connectionService) ConnectWithToken(ctx context.Context, token string) (*models.Connection, error) {
	identity := s.discovery.Identify(ctx, token)

	databases, err := s.discovery.ListDatabases(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	detected := notion.DetectDatabases(databases)
	if !detected.Complete() {
		s.logger.Info("Database auto-detection incomplete",
			zap.String("workspace_id", identity.WorkspaceID),
			zap.Int("databases", len(databases)),
			zap.Bool("tasks", detected.TasksDBID != ""),
			zap.Bool("projects", detected.ProjectsDBID != ""),
			zap.Bool("sprints", detected.SprintsDBID != ""))
		return nil, apperrors.ErrDatabasesNotDetected
	}

	s.logger.Info("Connected workspace with integration token",
		zap.String("workspace_id", identity.WorkspaceID),
		zap.String("workspace_name", identity.WorkspaceName))

	return &models.Connection{
		WorkspaceID:   identity.WorkspaceID,
		WorkspaceName: identity.WorkspaceName,
		AccessToken:   token,
		TasksDBID:     detected.TasksDBID,
		ProjectsDBID:  detected.ProjectsDBID,
		SprintsDBID:   detected.SprintsDBID,
		ConnectedAt:   s.now().UTC(),
	}, nil
}

func (s *connectionService) ListDatabases(ctx context.Context, conn models.Connection) ([]models.Database, error) {
	return s.discovery.ListDatabases(ctx, conn.AccessToken)
}

var _ ConnectionService = (*connectionService)(nil)
