// Package notion talks to the Notion REST API.
//
// Client covers the calls whose responses are read shape-tolerantly (database
// queries and page fetches return rows as decoded JSON). Discovery covers the
// schema and identity calls through github.com/jomei/notionapi, and OAuth
// wraps the authorization-code flow.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/config"
	"github.com/ekaya-inc/taskboard/pkg/jsonutil"
	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/retry"
)

// SortProperty orders query results; the newest edits come first so that the
// single fetched page holds the most relevant rows.
const SortProperty = "Last edited time"

// APIError is the error envelope returned by the Notion API. Message is the
// upstream text, passed to callers unchanged.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("notion api returned status %d", e.Status)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Status }

// IsRetryable reports whether the failure is transient (rate limit or server error).
func (e *APIError) IsRetryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Client makes raw JSON calls to the Notion API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	version     string
	pageSize    int
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewClient creates a Notion API client from configuration.
func NewClient(cfg config.NotionConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL:     cfg.APIBaseURL,
		version:     cfg.APIVersion,
		pageSize:    cfg.PageSize,
		retryConfig: retry.DefaultConfig(),
		logger:      logger.Named("notion"),
	}
}

// WithRetryConfig replaces the retry policy used for database queries.
func (c *Client) WithRetryConfig(cfg *retry.Config) *Client {
	c.retryConfig = cfg
	return c
}

type queryRequest struct {
	PageSize int         `json:"page_size"`
	Sorts    []querySort `json:"sorts"`
}

type querySort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

// QueryDatabase fetches a single page of rows from a database, most recently
// edited first. Rate limits and server errors are retried.
func (c *Client) QueryDatabase(ctx context.Context, token, databaseID string) ([]map[string]any, error) {
	body := queryRequest{
		PageSize: c.pageSize,
		Sorts:    []querySort{{Property: SortProperty, Direction: "descending"}},
	}

	c.logger.Debug("Querying database",
		zap.String("database_id", databaseID),
		zap.Int("page_size", c.pageSize))

	return retry.DoIfRetryableWithResult(ctx, c.retryConfig, func() ([]map[string]any, error) {
		var resp struct {
			Results any `json:"results"`
		}
		if err := c.do(ctx, http.MethodPost, token, body, &resp, "v1", "databases", databaseID, "query"); err != nil {
			return nil, err
		}
		rows, skipped := objectRows(resp.Results)
		if skipped > 0 {
			c.logger.Debug("Skipped query results that are not objects",
				zap.String("database_id", databaseID),
				zap.Int("skipped", skipped))
		}
		return rows, nil
	})
}

// objectRows keeps the object entries of a results array. Anything else,
// including a results member that is not an array, is counted and dropped.
func objectRows(results any) ([]map[string]any, int) {
	items, ok := jsonutil.Array(results)
	if !ok {
		if results == nil {
			return []map[string]any{}, 0
		}
		return []map[string]any{}, 1
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if row, ok := jsonutil.Object(item); ok {
			rows = append(rows, row)
		}
	}
	return rows, len(items) - len(rows)
}

// GetPage fetches one page.
func (c *Client) GetPage(ctx context.Context, token, pageID string) (map[string]any, error) {
	var page map[string]any
	if err := c.do(ctx, http.MethodGet, token, nil, &page, "v1", "pages", pageID); err != nil {
		return nil, err
	}
	return page, nil
}

// do executes an authenticated request and decodes a successful response
// into out. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, token string, body, out any, pathSegments ...string) error {
	endpoint, err := buildURL(c.baseURL, pathSegments...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notion: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		_ = json.Unmarshal(respBody, apiErr)
		apiErr.Status = resp.StatusCode
		c.logger.Warn("Notion returned error",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("body", logging.SanitizeBody(respBody)))
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}
