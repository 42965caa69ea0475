package models

import "time"

// SharedDatabaseLabel replaces the real database id on rows that come from
// the server-provided shared connection.
const SharedDatabaseLabel = "shared"

// Connection is one linked Notion workspace: the credential used to call the
// API plus the databases selected for it.
type Connection struct {
	WorkspaceID   string    `json:"workspaceId"`
	WorkspaceName string    `json:"workspaceName"`
	AccessToken   string    `json:"accessToken"`
	BotID         string    `json:"botId,omitempty"`
	TasksDBID     string    `json:"tasksDbId,omitempty"`
	ProjectsDBID  string    `json:"projectsDbId,omitempty"`
	SprintsDBID   string    `json:"sprintsDbId,omitempty"`
	ConnectedAt   time.Time `json:"connectedAt"`
	Shared        bool      `json:"shared,omitempty"`
}

// IsValid reports whether the connection carries the three fields every
// stored connection must have.
func (c Connection) IsValid() bool {
	return c.WorkspaceID != "" && c.WorkspaceName != "" && c.AccessToken != ""
}

// HasTasksDatabase reports whether a tasks database has been selected.
func (c Connection) HasTasksDatabase() bool {
	return c.TasksDBID != ""
}

// DatabaseLabel is the database identifier exposed to viewers. Shared
// connections never expose their real database id.
func (c Connection) DatabaseLabel() string {
	if c.Shared {
		return SharedDatabaseLabel
	}
	return c.TasksDBID
}

// ConnectionSummary is the token-free view of a connection returned to the UI.
type ConnectionSummary struct {
	WorkspaceID   string     `json:"workspaceId"`
	WorkspaceName string     `json:"workspaceName"`
	TasksDBID     string     `json:"tasksDbId"`
	ProjectsDBID  string     `json:"projectsDbId"`
	SprintsDBID   string     `json:"sprintsDbId"`
	ConnectedAt   *time.Time `json:"connectedAt"`
}

// Summary strips the access token.
func (c Connection) Summary() ConnectionSummary {
	s := ConnectionSummary{
		WorkspaceID:   c.WorkspaceID,
		WorkspaceName: c.WorkspaceName,
		TasksDBID:     c.TasksDBID,
		ProjectsDBID:  c.ProjectsDBID,
		SprintsDBID:   c.SprintsDBID,
	}
	if !c.ConnectedAt.IsZero() {
		t := c.ConnectedAt
		s.ConnectedAt = &t
	}
	return s
}

// DetectedDatabases holds the databases picked for a workspace by title.
type DetectedDatabases struct {
	TasksDBID    string `json:"tasksDbId"`
	ProjectsDBID string `json:"projectsDbId"`
	SprintsDBID  string `json:"sprintsDbId"`
}

// Complete reports whether all three databases were found.
func (d DetectedDatabases) Complete() bool {
	return d.TasksDBID != "" && d.ProjectsDBID != "" && d.SprintsDBID != ""
}

// Database is a Notion database visible to an integration.
type Database struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PropertyInfo describes one column of a Notion database.
type PropertyInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AppCredentials are the OAuth client settings of a Notion public integration.
type AppCredentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
}

// IsComplete reports whether all three settings are present.
func (c AppCredentials) IsComplete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}
