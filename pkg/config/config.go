package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/taskboard/pkg/models"
)

// Config holds all configuration for taskboard.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (tokens, client secrets, signing keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// CookieDomain is the domain for session cookies (optional).
	// If empty, it will be auto-derived from BaseURL.
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	// SessionSecret signs and encrypts the per-browser cookies that hold
	// connections, app credentials and property mappings.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"`

	// ManagerSecret unlocks the manager role. Empty disables the role.
	ManagerSecret   string        `yaml:"-" env:"MANAGER_SECRET"`
	ManagerTokenTTL time.Duration `yaml:"manager_token_ttl" env:"MANAGER_TOKEN_TTL" env-default:"12h"`

	// ConventionsFile optionally overrides the conventional property names
	// tried for each task field.
	ConventionsFile string `yaml:"conventions_file" env:"CONVENTIONS_FILE" env-default:""`

	Notion      NotionConfig      `yaml:"notion"`
	Shared      SharedConfig      `yaml:"shared"`
	Relations   RelationsConfig   `yaml:"relations"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Log         LogConfig         `yaml:"log"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// NotionConfig holds Notion API settings and the server-level OAuth app.
type NotionConfig struct {
	APIBaseURL     string        `yaml:"api_base_url" env:"NOTION_API_BASE_URL" env-default:"https://api.notion.com"`
	APIVersion     string        `yaml:"api_version" env:"NOTION_API_VERSION" env-default:"2022-06-28"`
	PageSize       int           `yaml:"page_size" env:"NOTION_PAGE_SIZE" env-default:"50"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"NOTION_REQUEST_TIMEOUT" env-default:"30s"`

	// OAuth app used when the browser has not saved its own credentials.
	ClientID     string `yaml:"client_id" env:"NOTION_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"-" env:"NOTION_CLIENT_SECRET"` // Secret - not in YAML
	RedirectURI  string `yaml:"redirect_uri" env:"NOTION_REDIRECT_URI" env-default:""`
}

// AppCredentials returns the server-level OAuth app, or nil when any of the
// three settings is missing.
func (c *NotionConfig) AppCredentials() *models.AppCredentials {
	creds := models.AppCredentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
	}
	if !creds.IsComplete() {
		return nil
	}
	return &creds
}

// SharedConfig is the owner-provided fallback connection that lets guests
// without their own workspace see data.
type SharedConfig struct {
	AccessToken   string `yaml:"-" env:"NOTION_OWNER_ACCESS_TOKEN"` // Secret - not in YAML
	DatabaseID    string `yaml:"database_id" env:"NOTION_OWNER_DATABASE_ID" env-default:""`
	WorkspaceID   string `yaml:"workspace_id" env:"NOTION_OWNER_WORKSPACE_ID" env-default:"shared-workspace"`
	WorkspaceName string `yaml:"workspace_name" env:"NOTION_OWNER_WORKSPACE_NAME" env-default:"Shared Notion Workspace"`
}

// Connection returns the synthetic shared connection, or nil unless both the
// access token and the database id are configured.
func (c *SharedConfig) Connection() *models.Connection {
	if c == nil || c.AccessToken == "" || c.DatabaseID == "" {
		return nil
	}
	return &models.Connection{
		WorkspaceID:   c.WorkspaceID,
		WorkspaceName: c.WorkspaceName,
		AccessToken:   c.AccessToken,
		TasksDBID:     c.DatabaseID,
		Shared:        true,
	}
}

// RelationsConfig bounds relation title lookups.
type RelationsConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency" env:"RELATIONS_MAX_CONCURRENCY" env-default:"8"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"RELATIONS_FETCH_TIMEOUT" env-default:"10s"`
}

// Aggregation modes.
const (
	ModeAllOrNothing = "all_or_nothing"
	ModePartial      = "partial"
)

// AggregationConfig selects how a failing workspace affects the others.
type AggregationConfig struct {
	Mode string `yaml:"mode" env:"AGGREGATION_MODE" env-default:"all_or_nothing"`
}

// LogConfig configures the zap logger and optional file rotation.
type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File       string `yaml:"file" env:"LOG_FILE" env-default:""`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"30"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// ConfigFile is the YAML file read by Load. It is optional.
const ConfigFile = "config.yaml"

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// When config.yaml does not exist, configuration comes from the environment only.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(ConfigFile); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validate checks values that cleanenv cannot constrain.
func (c *Config) validate() error {
	switch c.Aggregation.Mode {
	case ModeAllOrNothing, ModePartial:
	default:
		return fmt.Errorf("aggregation mode must be %q or %q, got %q", ModeAllOrNothing, ModePartial, c.Aggregation.Mode)
	}
	if c.Relations.MaxConcurrency < 1 {
		return fmt.Errorf("relations max_concurrency must be at least 1")
	}
	if c.Notion.PageSize < 1 || c.Notion.PageSize > 100 {
		return fmt.Errorf("notion page_size must be between 1 and 100")
	}
	return nil
}
