package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

// WorkloadToolDeps contains the dependencies of the workload tools.
type WorkloadToolDeps struct {
	Workload services.WorkloadService
	Logger   *zap.Logger
}

type tasksToolResult struct {
	Tasks  []models.Task             `json:"tasks"`
	Count  int                       `json:"count"`
	Errors []services.WorkspaceError `json:"errors,omitempty"`
}

type peopleToolResult struct {
	People []models.Person           `json:"people"`
	Count  int                       `json:"count"`
	Errors []services.WorkspaceError `json:"errors,omitempty"`
}

// RegisterWorkloadTools adds get_tasks and get_people. Agents see the
// server's shared workspace only; browser connections live in cookies and are
// never available here.
func RegisterWorkloadTools(s Registrar, deps *WorkloadToolDeps) {
	registerGetTasksTool(s, deps)
	registerGetPeopleTool(s, deps)
}

func registerGetTasksTool(s Registrar, deps *WorkloadToolDeps) {
	tool := mcp.NewTool(
		"get_tasks",
		mcp.WithDescription(
			"List the tasks of the shared Notion workspace in a uniform shape: "+
				"title, status, project, sprint, due date, planned estimate and assignees. "+
				"Use get_people to see the same tasks grouped by assignee.",
		),
		mcp.WithString(
			"workspace",
			mcp.Description("Optional workspace id or name. Only tasks from this workspace are returned."),
		),
		mcp.WithString(
			"status",
			mcp.Description("Optional status bucket filter"),
			mcp.Enum(string(models.StatusDone), string(models.StatusBlocked), string(models.StatusInProgress), string(models.StatusQueued)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := deps.Workload.GetTasks(ctx, nil, nil)
		if !result.OK {
			return failedResult(deps.Logger, "get_tasks", result.Message, result.Err), nil
		}

		tasks := filterByWorkspace(result.Tasks, req.GetString("workspace", ""))
		if bucket := req.GetString("status", ""); bucket != "" {
			kept := make([]models.Task, 0, len(tasks))
			for _, t := range tasks {
				if string(t.StatusBucket) == bucket {
					kept = append(kept, t)
				}
			}
			tasks = kept
		}

		return jsonResult(tasksToolResult{Tasks: tasks, Count: len(tasks), Errors: result.Errors})
	})
}

func registerGetPeopleTool(s Registrar, deps *WorkloadToolDeps) {
	tool := mcp.NewTool(
		"get_people",
		mcp.WithDescription(
			"List the people of the shared Notion workspace with their tasks and load "+
				"(light up to 3 tasks, balanced up to 6, heavy above). "+
				"Tasks without an assignee are grouped under 'Unassigned'.",
		),
		mcp.WithString(
			"workspace",
			mcp.Description("Optional workspace id or name. Loads are computed over this workspace only."),
		),
		mcp.WithString(
			"load",
			mcp.Description("Optional load filter"),
			mcp.Enum(string(models.LoadLight), string(models.LoadBalanced), string(models.LoadHeavy)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := deps.Workload.GetTasks(ctx, nil, nil)
		if !result.OK {
			return failedResult(deps.Logger, "get_people", result.Message, result.Err), nil
		}

		people := services.GroupPeople(filterByWorkspace(result.Tasks, req.GetString("workspace", "")))
		if load := req.GetString("load", ""); load != "" {
			kept := make([]models.Person, 0, len(people))
			for _, p := range people {
				if string(p.Load) == load {
					kept = append(kept, p)
				}
			}
			people = kept
		}

		return jsonResult(peopleToolResult{People: people, Count: len(people), Errors: result.Errors})
	})
}

// filterByWorkspace keeps tasks whose workspace id or name matches, ignoring
// case. An empty filter keeps everything.
func filterByWorkspace(tasks []models.Task, workspace string) []models.Task {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return tasks
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.EqualFold(t.WorkspaceID, workspace) || strings.EqualFold(t.WorkspaceName, workspace) {
			out = append(out, t)
		}
	}
	return out
}

func failedResult(logger *zap.Logger, tool, message string, err error) *mcp.CallToolResult {
	code := "notion_error"
	if errors.Is(err, apperrors.ErrNoConnections) {
		code = "no_connections"
		logger.Debug("Workload tool called without a shared workspace", zap.String("tool", tool))
	} else {
		logger.Warn("Workload tool failed", zap.String("tool", tool), zap.String("message", message))
	}
	return NewErrorResult(code, message)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
