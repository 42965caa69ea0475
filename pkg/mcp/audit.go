package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/auth"
)

// maxPreviewLength caps the result preview written to the audit log.
const maxPreviewLength = 200

var sensitiveParamKeywords = []string{"password", "secret", "token", "key", "credential"}

// AuditLogger writes one structured log line per MCP tool call.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := a.eventFields(ctx, id, req)
	summary := summarizeResult(result)
	fields = append(fields, zap.Any("result", summary))

	if result != nil && result.IsError {
		a.logger.Info("MCP tool call returned an error result", fields...)
		return
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	fields := a.eventFields(ctx, id, req)
	fields = append(fields, zap.Error(err))
	a.logger.Warn("MCP tool call failed", fields...)
}

func (a *AuditLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

func (a *AuditLogger) eventFields(ctx context.Context, id any, req *mcplib.CallToolRequest) []zap.Field {
	startTime, _ := a.loadAndDeleteStart(id)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", time.Since(startTime)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
	if claims, ok := auth.GetClaims(ctx); ok {
		fields = append(fields, zap.String("subject", claims.Subject), zap.String("role", claims.Role))
	}
	return fields
}

// sanitizeParams hashes the values of sensitive-looking keys so entries can
// be correlated without storing the value.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitiveParam(k) {
			sanitized[k] = hashSensitiveValue(v)
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}

func isSensitiveParam(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveParamKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hashSensitiveValue returns a SHA-256 hash prefix of the value.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractCount(tc.Text, summary)

		text := tc.Text
		if len(text) > maxPreviewLength {
			text = text[:maxPreviewLength] + "...[truncated]"
		}
		summary["preview"] = text
		break
	}

	return summary
}

// extractCount copies the count field of a workload tool result.
func extractCount(text string, summary map[string]any) {
	var partial struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err == nil && partial.Count != nil {
		summary["count"] = *partial.Count
	}
}
