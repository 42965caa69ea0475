package normalize

import (
	"github.com/ekaya-inc/taskboard/pkg/jsonutil"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// Normalizer reduces raw rows to tasks using a set of naming conventions.
type Normalizer struct {
	conventions *Conventions
}

// NewNormalizer creates a normalizer. A nil conventions table uses the
// defaults.
func NewNormalizer(conventions *Conventions) *Normalizer {
	if conventions == nil {
		conventions = DefaultConventions()
	}
	return &Normalizer{conventions: conventions}
}

// NormalizeRow converts one database row into a Task. It has no side effects
// and always returns a task whose title, status, project and sprint are set.
func (n *Normalizer) NormalizeRow(row map[string]any, conn models.Connection, mapping models.PropertyMapping, titles RelationTitles) models.Task {
	props := RowProperties(row)
	conv := n.conventions
	pageID, _ := jsonutil.String(row["id"])

	text := func(f models.Field, extract func(any) string) string {
		return ResolveText(props, mapping.Get(f), conv.Names(f), DefaultChain, extract)
	}

	task := models.Task{
		PageID:        pageID,
		TaskID:        text(models.FieldTaskID, richText),
		Title:         text(models.FieldTitle, titleText),
		Status:        text(models.FieldStatus, SelectLabel),
		Due:           text(models.FieldDue, DateStart),
		StatusDetails: text(models.FieldStatusDetails, richText),
		Health:        text(models.FieldHealth, GenericText),
		WorkspaceID:   conn.WorkspaceID,
		WorkspaceName: conn.WorkspaceName,
		DatabaseID:    conn.DatabaseLabel(),
	}

	if task.TaskID == "" {
		task.TaskID = pageID
	}
	if task.Title == "" {
		task.Title = FirstTitle(props)
	}
	if task.Title == "" {
		task.Title = models.DefaultTitle
	}
	if task.Status == "" {
		task.Status = models.DefaultStatus
	}
	task.StatusBucket = models.BucketForStatus(task.Status)

	task.Project = n.relationField(props, models.FieldProject, mapping, titles)
	if task.Project == "" {
		task.Project = conn.WorkspaceName
	}
	if task.Project == "" {
		task.Project = models.DefaultProject
	}

	task.Sprint = n.relationField(props, models.FieldSprint, mapping, titles)
	if task.Sprint == "" {
		task.Sprint = models.DefaultSprint
	}

	if est, ok := Resolve(props, mapping.Get(models.FieldPlannedEstimate), conv.PlannedEstimate, EstimateChain, estimateOf); ok {
		task.PlannedEstimate = est
	}

	task.Space = ResolveText(props, "", conv.Space, DefaultChain, SpaceLabel)
	if task.Space == "" {
		task.Space = conn.WorkspaceName
	}

	task.Assignees = n.assignees(props)
	return task
}

// relationField resolves project or sprint. A looked-up relation title beats
// the relation's inline name, which beats plain text.
func (n *Normalizer) relationField(props map[string]any, f models.Field, mapping models.PropertyMapping, titles RelationTitles) string {
	if title := titles.lookup(props[n.conventions.RelationProperty(f, mapping)]); title != "" {
		return title
	}
	return ResolveText(props, mapping.Get(f), n.conventions.Names(f), DefaultChain, relationOrText)
}

// assignees reads the first people property present. An empty people list
// still counts as present, so later names are not consulted.
func (n *Normalizer) assignees(props map[string]any) []models.Assignee {
	for _, name := range n.conventions.Assignee {
		if people, ok := People(props[name]); ok {
			return people
		}
	}
	return nil
}

func estimateOf(prop any) (*models.Estimate, bool) {
	if est := NumericValue(prop); est != nil {
		return est, true
	}
	if s := GenericText(prop); s != "" {
		return models.TextEstimate(s), true
	}
	return nil, false
}
