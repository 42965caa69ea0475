package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// PropertyMappingService edits the per-workspace property mappings and lists
// the columns a mapping can point at.
type PropertyMappingService interface {
	// Put sanitizes raw and stores it as the mapping of workspaceID,
	// replacing any previous one. It returns the updated set and the
	// sanitized mapping.
	Put(current models.MappingSet, workspaceID string, raw map[string]any) (models.MappingSet, models.PropertyMapping)
	// Properties lists the columns of the workspace's tasks database.
	// It fails with apperrors.ErrNotFound when the workspace is unknown or
	// has no tasks database.
	Properties(ctx context.Context, conns []models.Connection, workspaceID string) ([]models.PropertyInfo, error)
}

type propertyMappingService struct {
	discovery WorkspaceDiscovery
	logger    *zap.Logger
}

// NewPropertyMappingService creates a property mapping service.
func NewPropertyMappingService(discovery WorkspaceDiscovery, logger *zap.Logger) PropertyMappingService {
	return &propertyMappingService{
		discovery: discovery,
		logger:    logger.Named("mapping"),
	}
}

func (s *propertyMappingService) Put(current models.MappingSet, workspaceID string, raw map[string]any) (models.MappingSet, models.PropertyMapping) {
	sanitized := models.SanitizeMapping(raw)

	next := make(models.MappingSet, len(current)+1)
	for id, m := range current {
		next[id] = m
	}
	next[workspaceID] = sanitized

	s.logger.Debug("Property mapping updated",
		zap.String("workspace_id", workspaceID),
		zap.Int("fields", len(sanitized)))
	return next, sanitized
}

func (s *propertyMappingService) Properties(ctx context.Context, conns []models.Connection, workspaceID string) ([]models.PropertyInfo, error) {
	conn, ok := FindConnection(conns, workspaceID)
	if !ok || !conn.HasTasksDatabase() {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, apperrors.ErrNotFound)
	}
	return s.discovery.DatabaseProperties(ctx, conn.AccessToken, conn.TasksDBID)
}

var _ PropertyMappingService = (*propertyMappingService)(nil)
