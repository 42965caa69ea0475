package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Registrar is where tools are added: *server.MCPServer, or the taskboard
// mcp.Server which also records tool names.
type Registrar interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Health statuses.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// noSharedWorkspaceNote explains a degraded health result.
const noSharedWorkspaceNote = "No shared workspace is configured (NOTION_OWNER_ACCESS_TOKEN and NOTION_OWNER_DATABASE_ID); get_tasks and get_people will return no_connections."

// HealthInfo is the deployment state reported by the health tool.
type HealthInfo struct {
	Version string
	// SharedWorkspace is the name of the server's shared workspace, "" when
	// none is configured.
	SharedWorkspace string
	AggregationMode string
	ManagerRequired bool
}

type healthResult struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	SharedWorkspace string `json:"shared_workspace,omitempty"`
	AggregationMode string `json:"aggregation_mode"`
	ManagerRequired bool   `json:"manager_required"`
	Note            string `json:"note,omitempty"`
}

func (h HealthInfo) result() healthResult {
	r := healthResult{
		Status:          HealthOK,
		Version:         h.Version,
		SharedWorkspace: h.SharedWorkspace,
		AggregationMode: h.AggregationMode,
		ManagerRequired: h.ManagerRequired,
	}
	// Agents only ever see the shared workspace.
	if h.SharedWorkspace == "" {
		r.Status = HealthDegraded
		r.Note = noSharedWorkspaceNote
	}
	return r
}

// RegisterHealthTool adds the health tool. It reports whether the workload
// tools have a workspace to read and how aggregation behaves.
func RegisterHealthTool(s Registrar, info HealthInfo) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Reports whether the taskboard has a shared Notion workspace for agents, the aggregation mode and the server version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := json.Marshal(info.result())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}
