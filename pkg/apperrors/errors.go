package apperrors

import "errors"

var (
	ErrNotFound                   = errors.New("not found")
	ErrNoConnections              = errors.New("no connected workspaces with a tasks database")
	ErrMissingAppCredentials      = errors.New("missing notion client credentials")
	ErrInvalidState               = errors.New("invalid oauth state")
	ErrDatabasesNotDetected       = errors.New("could not auto-detect tasks, projects, or sprints databases")
	ErrManagerSecretNotConfigured = errors.New("manager secret not configured")
	ErrInvalidManagerSecret       = errors.New("invalid manager secret")
	ErrStorageFull                = errors.New("value too large for browser storage")
)
