package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/taskboard/pkg/models"
)

// Conventions lists, per field, the property names tried in order when the
// workspace has no explicit mapping for that field.
type Conventions struct {
	Title           []string `yaml:"title"`
	TaskID          []string `yaml:"taskId"`
	Status          []string `yaml:"status"`
	Project         []string `yaml:"project"`
	Due             []string `yaml:"due"`
	StatusDetails   []string `yaml:"statusDetails"`
	Sprint          []string `yaml:"sprint"`
	PlannedEstimate []string `yaml:"plannedEstimate"`
	Health          []string `yaml:"health"`
	Assignee        []string `yaml:"assignee"`
	Space           []string `yaml:"space"`
}

// DefaultConventions returns the built-in naming conventions.
func DefaultConventions() *Conventions {
	return &Conventions{
		Title:         []string{"Name", "Title", "Task"},
		TaskID:        []string{"Task ID", "TaskId", "ID"},
		Status:        []string{"Status"},
		Project:       []string{"Project", "Project Name"},
		Due:           []string{"Due", "Deadline", "ETA"},
		StatusDetails: []string{"Status Details", "Details", "Notes"},
		Sprint:        []string{"Sprint", "Sprint Name"},
		PlannedEstimate: []string{
			"Planned Estimates", "Planned Estimate", "Estimate", "Estimation",
			"Points", "Story Points", "Effort", "Hours",
		},
		Health:   []string{"Health", "Risk", "State"},
		Assignee: []string{"Assignee", "Owner", "Owners"},
		Space:    []string{"Space"},
	}
}

// Names returns the conventional property names of a mappable field.
func (c *Conventions) Names(f models.Field) []string {
	switch f {
	case models.FieldTitle:
		return c.Title
	case models.FieldTaskID:
		return c.TaskID
	case models.FieldStatus:
		return c.Status
	case models.FieldProject:
		return c.Project
	case models.FieldDue:
		return c.Due
	case models.FieldStatusDetails:
		return c.StatusDetails
	case models.FieldSprint:
		return c.Sprint
	case models.FieldPlannedEstimate:
		return c.PlannedEstimate
	case models.FieldHealth:
		return c.Health
	default:
		return nil
	}
}

// RelationProperty is the single property scanned for relation ids of a
// field: the mapped name when set, else the first conventional name.
func (c *Conventions) RelationProperty(f models.Field, mapping models.PropertyMapping) string {
	if name := mapping.Get(f); name != "" {
		return name
	}
	if names := c.Names(f); len(names) > 0 {
		return names[0]
	}
	return ""
}

// LoadConventions reads a YAML file of conventional names. Fields present in
// the file replace the built-in list for that field; absent fields keep the
// defaults. An empty path returns the defaults.
func LoadConventions(path string) (*Conventions, error) {
	conv := DefaultConventions()
	if path == "" {
		return conv, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conventions file: %w", err)
	}

	var overrides Conventions
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse conventions file %s: %w", path, err)
	}

	conv.merge(&overrides)
	return conv, nil
}

func (c *Conventions) merge(o *Conventions) {
	override := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	override(&c.Title, o.Title)
	override(&c.TaskID, o.TaskID)
	override(&c.Status, o.Status)
	override(&c.Project, o.Project)
	override(&c.Due, o.Due)
	override(&c.StatusDetails, o.StatusDetails)
	override(&c.Sprint, o.Sprint)
	override(&c.PlannedEstimate, o.PlannedEstimate)
	override(&c.Health, o.Health)
	override(&c.Assignee, o.Assignee)
	override(&c.Space, o.Space)
}
