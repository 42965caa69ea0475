package models

import "strings"

// Field is a semantic task field that can be bound to a Notion property.
type Field string

const (
	FieldTitle           Field = "title"
	FieldTaskID          Field = "taskId"
	FieldStatus          Field = "status"
	FieldProject         Field = "project"
	FieldDue             Field = "due"
	FieldStatusDetails   Field = "statusDetails"
	FieldSprint          Field = "sprint"
	FieldPlannedEstimate Field = "plannedEstimate"
	FieldHealth          Field = "health"
)

// Fields lists every mappable field in display order.
var Fields = []Field{
	FieldTitle,
	FieldTaskID,
	FieldStatus,
	FieldProject,
	FieldDue,
	FieldStatusDetails,
	FieldSprint,
	FieldPlannedEstimate,
	FieldHealth,
}

// IsValidField checks if the given name is a mappable field.
func IsValidField(name string) bool {
	for _, f := range Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// PropertyMapping binds semantic fields to the literal Notion property names
// of one workspace. Absent fields fall back to conventional names.
type PropertyMapping map[Field]string

// Get returns the mapped property name for a field, or "" if unmapped.
// Safe on a nil mapping.
func (m PropertyMapping) Get(f Field) string {
	if m == nil {
		return ""
	}
	return m[f]
}

// Sanitize drops unknown fields and blank names and trims the rest.
// The result never contains empty-string values.
func (m PropertyMapping) Sanitize() PropertyMapping {
	out := PropertyMapping{}
	for _, f := range Fields {
		if v := strings.TrimSpace(m.Get(f)); v != "" {
			out[f] = v
		}
	}
	return out
}

// SanitizeMapping builds a mapping from loosely typed input, such as a decoded
// request body. Non-string values are ignored.
func SanitizeMapping(raw map[string]any) PropertyMapping {
	m := PropertyMapping{}
	for key, val := range raw {
		s, ok := val.(string)
		if !ok || !IsValidField(key) {
			continue
		}
		m[Field(key)] = s
	}
	return m.Sanitize()
}

// MappingSet holds the property mappings of every workspace, keyed by
// workspace id.
type MappingSet map[string]PropertyMapping

// For returns the mapping of a workspace, never nil.
func (s MappingSet) For(workspaceID string) PropertyMapping {
	if m, ok := s[workspaceID]; ok && m != nil {
		return m
	}
	return PropertyMapping{}
}
