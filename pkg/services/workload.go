// Package services contains the business logic of taskboard.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/config"
	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/normalize"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

// NoConnectionsMessage is shown when nothing can be queried.
const NoConnectionsMessage = "No connected workspaces with database IDs. Connect and set a tasks database per workspace."

// DatabaseQuerier fetches the rows of a tasks database.
type DatabaseQuerier interface {
	QueryDatabase(ctx context.Context, token, databaseID string) ([]map[string]any, error)
}

// TitleResolver looks up the titles of pages referenced by relations.
type TitleResolver interface {
	Resolve(ctx context.Context, rows []map[string]any, conn *models.Connection, mapping models.PropertyMapping) normalize.RelationTitles
}

// ConnectionError is a failed query against one workspace. Its message is
// the upstream message unchanged.
type ConnectionError struct {
	WorkspaceID   string
	WorkspaceName string
	Err           error
}

func (e *ConnectionError) Error() string {
	var apiErr *notion.APIError
	if errors.As(e.Err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("Failed to query Notion for workspace %s", e.WorkspaceName)
	}
	if e.Err == nil {
		return fmt.Sprintf("Failed to query Notion for workspace %s", e.WorkspaceName)
	}
	return e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WorkspaceError reports a workspace left out of a partial aggregation.
type WorkspaceError struct {
	WorkspaceID   string `json:"workspaceId"`
	WorkspaceName string `json:"workspaceName"`
	Message       string `json:"message"`
}

// Workload is the merged view over every queried workspace.
type Workload struct {
	Tasks  []models.Task
	Errors []WorkspaceError
}

// TasksResult is the tagged outcome of GetTasks. Err is set when OK is false.
type TasksResult struct {
	OK      bool             `json:"ok"`
	Message string           `json:"message,omitempty"`
	Tasks   []models.Task    `json:"tasks"`
	Errors  []WorkspaceError `json:"errors,omitempty"`
	Err     error            `json:"-"`
}

// PeopleResult is the tagged outcome of GetPeople. Err is set when OK is false.
type PeopleResult struct {
	OK      bool             `json:"ok"`
	Message string           `json:"message,omitempty"`
	People  []models.Person  `json:"people"`
	Errors  []WorkspaceError `json:"errors,omitempty"`
	Err     error            `json:"-"`
}

// WorkloadService merges the tasks of every connected workspace.
type WorkloadService interface {
	// Aggregate queries every configured connection and normalizes the rows.
	// It fails with apperrors.ErrNoConnections when nothing can be queried.
	Aggregate(ctx context.Context, conns []models.Connection, mappings models.MappingSet) (*Workload, error)
	// GetTasks never returns an error; failures are reported in the result.
	GetTasks(ctx context.Context, conns []models.Connection, mappings models.MappingSet) TasksResult
	// GetPeople groups the aggregated tasks by assignee.
	GetPeople(ctx context.Context, conns []models.Connection, mappings models.MappingSet) PeopleResult
}

// WorkloadConfig holds the settings that shape an aggregation.
type WorkloadConfig struct {
	// Shared is the server-provided connection shown to every viewer. Nil
	// when not configured.
	Shared *models.Connection
	// Mode is config.ModeAllOrNothing or config.ModePartial.
	Mode string
}

type workloadService struct {
	cfg        WorkloadConfig
	querier    DatabaseQuerier
	resolver   TitleResolver
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// NewWorkloadService creates a workload service.
func NewWorkloadService(cfg WorkloadConfig, querier DatabaseQuerier, resolver TitleResolver, normalizer *normalize.Normalizer, logger *zap.Logger) WorkloadService {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeAllOrNothing
	}
	return &workloadService{
		cfg:        cfg,
		querier:    querier,
		resolver:   resolver,
		normalizer: normalizer,
		logger:     logger.Named("workload"),
	}
}

// targets returns the connections to query: the shared one first, then every
// connection with a tasks database.
func (s *workloadService) targets(conns []models.Connection) []models.Connection {
	out := make([]models.Connection, 0, len(conns)+1)
	if s.cfg.Shared != nil {
		out = append(out, *s.cfg.Shared)
	}
	for _, c := range conns {
		if !c.HasTasksDatabase() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *workloadService) Aggregate(ctx context.Context, conns []models.Connection, mappings models.MappingSet) (*Workload, error) {
	targets := s.targets(conns)
	if len(targets) == 0 {
		return nil, apperrors.ErrNoConnections
	}

	s.logger.Debug("Aggregating workspaces",
		zap.Int("connections", len(targets)),
		zap.String("mode", s.cfg.Mode))

	perConn := make([][]models.Task, len(targets))

	if s.cfg.Mode == config.ModePartial {
		return s.aggregatePartial(ctx, targets, mappings, perConn)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range targets {
		g.Go(func() error {
			tasks, err := s.fetchConnection(gctx, conn, mappings.For(conn.WorkspaceID))
			if err != nil {
				return err
			}
			perConn[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Workload{Tasks: flatten(perConn)}, nil
}

// aggregatePartial keeps the tasks of every workspace that answered and
// reports the others. It fails only when every workspace failed.
func (s *workloadService) aggregatePartial(ctx context.Context, targets []models.Connection, mappings models.MappingSet, perConn [][]models.Task) (*Workload, error) {
	var (
		mu       sync.Mutex
		failures = make([]*ConnectionError, len(targets))
		failed   int
		g        errgroup.Group
	)
	for i, conn := range targets {
		g.Go(func() error {
			tasks, err := s.fetchConnection(ctx, conn, mappings.For(conn.WorkspaceID))
			if err != nil {
				var connErr *ConnectionError
				if !errors.As(err, &connErr) {
					connErr = &ConnectionError{WorkspaceID: conn.WorkspaceID, WorkspaceName: conn.WorkspaceName, Err: err}
				}
				mu.Lock()
				failures[i] = connErr
				failed++
				mu.Unlock()
				return nil
			}
			perConn[i] = tasks
			return nil
		})
	}
	_ = g.Wait()

	var errs []WorkspaceError
	var first error
	for _, f := range failures {
		if f == nil {
			continue
		}
		if first == nil {
			first = f
		}
		errs = append(errs, WorkspaceError{
			WorkspaceID:   f.WorkspaceID,
			WorkspaceName: f.WorkspaceName,
			Message:       f.Error(),
		})
	}
	if failed == len(targets) {
		return nil, first
	}
	return &Workload{Tasks: flatten(perConn), Errors: errs}, nil
}

// fetchConnection queries one workspace and normalizes its rows.
func (s *workloadService) fetchConnection(ctx context.Context, conn models.Connection, mapping models.PropertyMapping) ([]models.Task, error) {
	rows, err := s.querier.QueryDatabase(ctx, conn.AccessToken, conn.TasksDBID)
	if err != nil {
		s.logger.Warn("Workspace query failed",
			zap.String("workspace_id", conn.WorkspaceID),
			zap.String("workspace_name", conn.WorkspaceName),
			zap.String("error", logging.SanitizeError(err)))
		return nil, &ConnectionError{
			WorkspaceID:   conn.WorkspaceID,
			WorkspaceName: conn.WorkspaceName,
			Err:           err,
		}
	}

	titles := s.resolver.Resolve(ctx, rows, &conn, mapping)

	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, s.normalizer.NormalizeRow(row, conn, mapping, titles))
	}

	s.logger.Debug("Workspace normalized",
		zap.String("workspace_id", conn.WorkspaceID),
		zap.Int("rows", len(rows)),
		zap.Int("relation_titles", len(titles)))
	return tasks, nil
}

func (s *workloadService) GetTasks(ctx context.Context, conns []models.Connection, mappings models.MappingSet) TasksResult {
	workload, err := s.Aggregate(ctx, conns, mappings)
	if err != nil {
		return TasksResult{OK: false, Message: failureMessage(err), Tasks: []models.Task{}, Err: err}
	}
	return TasksResult{OK: true, Tasks: workload.Tasks, Errors: workload.Errors}
}

func (s *workloadService) GetPeople(ctx context.Context, conns []models.Connection, mappings models.MappingSet) PeopleResult {
	workload, err := s.Aggregate(ctx, conns, mappings)
	if err != nil {
		return PeopleResult{OK: false, Message: failureMessage(err), People: []models.Person{}, Err: err}
	}
	return PeopleResult{OK: true, People: GroupPeople(workload.Tasks), Errors: workload.Errors}
}

func failureMessage(err error) string {
	if errors.Is(err, apperrors.ErrNoConnections) {
		return NoConnectionsMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error querying Notion"
}

// GroupPeople buckets tasks by assignee in order of first appearance. Tasks
// without assignees go to a single unassigned bucket; a task with several
// assignees appears under each of them.
func GroupPeople(tasks []models.Task) []models.Person {
	var order []string
	byID := map[string]*models.Person{}

	for _, task := range tasks {
		targets := task.Assignees
		if len(targets) == 0 {
			targets = []models.Assignee{{ID: models.UnassignedID, Name: models.UnassignedName}}
		}
		for _, a := range targets {
			id := a.ID
			if id == "" {
				id = models.UnassignedID
			}
			person, ok := byID[id]
			if !ok {
				name := a.Name
				if name == "" {
					name = models.UnassignedName
				}
				person = &models.Person{
					ID:        id,
					Name:      name,
					Role:      models.DefaultRole,
					Spaces:    []string{},
					Databases: []string{},
					Tasks:     []models.Task{},
				}
				byID[id] = person
				order = append(order, id)
			}
			person.Tasks = append(person.Tasks, task)
			person.Spaces = appendUnique(person.Spaces, task.Space)
			person.Databases = appendUnique(person.Databases, task.DatabaseID)
		}
	}

	people := make([]models.Person, 0, len(order))
	for _, id := range order {
		p := byID[id]
		p.Load = models.LoadForCount(len(p.Tasks))
		people = append(people, *p)
	}
	return people
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func flatten(perConn [][]models.Task) []models.Task {
	n := 0
	for _, tasks := range perConn {
		n += len(tasks)
	}
	out := make([]models.Task, 0, n)
	for _, tasks := range perConn {
		out = append(out, tasks...)
	}
	return out
}

var _ WorkloadService = (*workloadService)(nil)
