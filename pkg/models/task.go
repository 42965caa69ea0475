package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Defaults applied when a field cannot be resolved from a row.
const (
	DefaultTitle   = "Untitled task"
	DefaultStatus  = "Unknown"
	DefaultSprint  = "No Sprint added"
	DefaultProject = "Project"
)

// Task is one Notion row reduced to the uniform task shape.
type Task struct {
	PageID          string       `json:"pageId"`
	TaskID          string       `json:"taskId"`
	Title           string       `json:"title"`
	Status          string       `json:"status"`
	StatusBucket    StatusBucket `json:"statusBucket"`
	Project         string       `json:"project"`
	Space           string       `json:"space"`
	Due             string       `json:"due,omitempty"`
	Sprint          string       `json:"sprint"`
	StatusDetails   string       `json:"statusDetails,omitempty"`
	PlannedEstimate *Estimate    `json:"plannedEstimate,omitempty"`
	Health          string       `json:"health,omitempty"`
	Assignees       []Assignee   `json:"assignees,omitempty"`
	WorkspaceID     string       `json:"workspaceId"`
	WorkspaceName   string       `json:"workspaceName"`
	DatabaseID      string       `json:"databaseId"`
}

// Assignee is a Notion user referenced by a people property.
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// StatusBucket is the coarse status used for dashboard styling.
type StatusBucket string

const (
	StatusInProgress StatusBucket = "in_progress"
	StatusBlocked    StatusBucket = "blocked"
	StatusDone       StatusBucket = "done"
	StatusQueued     StatusBucket = "queued"
)

// BucketForStatus classifies a free-form status label.
func BucketForStatus(raw string) StatusBucket {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "done", "complete":
		return StatusDone
	case "blocked", "stuck":
		return StatusBlocked
	case "in progress", "doing":
		return StatusInProgress
	default:
		return StatusQueued
	}
}

// Estimate is a planned estimate, which Notion schemas hold either as a
// number or as free text. It marshals to a JSON number or string.
type Estimate struct {
	Value    float64
	Text     string
	IsNumber bool
}

// NumberEstimate returns a numeric estimate.
func NumberEstimate(v float64) *Estimate {
	return &Estimate{Value: v, IsNumber: true}
}

// TextEstimate returns a free-text estimate.
func TextEstimate(s string) *Estimate {
	return &Estimate{Text: s}
}

// MarshalJSON implements json.Marshaler.
func (e Estimate) MarshalJSON() ([]byte, error) {
	if e.IsNumber {
		return json.Marshal(e.Value)
	}
	return json.Marshal(e.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Estimate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*e = Estimate{}
		return json.Unmarshal(data, &e.Text)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = Estimate{Value: v, IsNumber: true}
	return nil
}
