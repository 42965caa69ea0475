// Package normalize turns raw Notion database rows into uniform tasks.
//
// Rows are decoded into map[string]any rather than typed structs: every user
// database has its own columns and types, so each extractor here inspects the
// shape it is given and returns an empty value when the shape does not match.
// Nothing in this package panics or returns an error for a malformed row.
package normalize

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ekaya-inc/taskboard/pkg/jsonutil"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// Rich text containers a property can carry.
const (
	ContainerTitle    = "title"
	ContainerRichText = "rich_text"
)

// PlainText concatenates the plain_text of every element in the container
// array of prop and trims the result.
func PlainText(prop any, container string) string {
	items, ok := jsonutil.Array(jsonutil.Path(prop, container))
	if !ok {
		return ""
	}
	return strings.TrimSpace(joinPlainText(items))
}

func joinPlainText(items []any) string {
	var b strings.Builder
	for _, item := range items {
		s, _ := jsonutil.String(jsonutil.Path(item, "plain_text"))
		b.WriteString(s)
	}
	return b.String()
}

// SelectLabel returns the option name of a status or select property.
// Status wins when both are present.
func SelectLabel(prop any) string {
	if name, _ := jsonutil.String(jsonutil.Path(prop, "status", "name")); name != "" {
		return name
	}
	name, _ := jsonutil.String(jsonutil.Path(prop, "select", "name"))
	return name
}

// RelationDisplayNames lists the names of related rows. A relation yields
// each entry's name, or its id when unnamed. A rollup yields the title text of
// each rolled-up item. Empty results are dropped.
func RelationDisplayNames(prop any) []string {
	var names []string
	if rel, ok := jsonutil.Array(jsonutil.Path(prop, "relation")); ok {
		for _, r := range rel {
			name, _ := jsonutil.String(jsonutil.Path(r, "name"))
			if name == "" {
				name, _ = jsonutil.String(jsonutil.Path(r, "id"))
			}
			if name != "" {
				names = append(names, name)
			}
		}
		return names
	}
	if items, ok := jsonutil.Array(jsonutil.Path(prop, "rollup", "array")); ok {
		for _, item := range items {
			if t := PlainText(item, ContainerTitle); t != "" {
				names = append(names, t)
			}
		}
	}
	return names
}

// RelationIDs lists the ids referenced by a relation property.
func RelationIDs(prop any) []string {
	rel, ok := jsonutil.Array(jsonutil.Path(prop, "relation"))
	if !ok {
		return nil
	}
	var ids []string
	for _, r := range rel {
		if id, _ := jsonutil.String(jsonutil.Path(r, "id")); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// NumericValue reads a number out of a number, rollup, formula or rich text
// property. Text that does not parse as a finite number is kept as text.
// Returns nil when nothing usable is found.
func NumericValue(prop any) *models.Estimate {
	obj, ok := jsonutil.Object(prop)
	if !ok {
		return nil
	}

	if raw, has := obj["number"]; has {
		if n, ok := jsonutil.Number(raw); ok {
			return models.NumberEstimate(n)
		}
		return nil
	}

	if rollup, ok := jsonutil.Object(obj["rollup"]); ok {
		if n, ok := jsonutil.Number(rollup["number"]); ok {
			return models.NumberEstimate(n)
		}
		if items, ok := jsonutil.Array(rollup["array"]); ok {
			for _, item := range items {
				if n, ok := jsonutil.Number(jsonutil.Path(item, "number")); ok {
					return models.NumberEstimate(n)
				}
			}
			for _, item := range items {
				if rt, ok := jsonutil.Array(jsonutil.Path(item, ContainerRichText)); ok {
					return parseEstimate(joinPlainText(rt))
				}
			}
		}
	}

	if formula, ok := jsonutil.Object(obj["formula"]); ok {
		if n, ok := jsonutil.Number(formula["number"]); ok {
			return models.NumberEstimate(n)
		}
		if s, ok := jsonutil.String(formula["string"]); ok && strings.TrimSpace(s) != "" {
			if n, ok := parseFinite(s); ok {
				return models.NumberEstimate(n)
			}
			return models.TextEstimate(s)
		}
	}

	if _, ok := jsonutil.Array(obj[ContainerRichText]); ok {
		return parseEstimate(PlainText(prop, ContainerRichText))
	}
	return nil
}

func parseEstimate(text string) *models.Estimate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if n, ok := parseFinite(text); ok {
		return models.NumberEstimate(n)
	}
	return models.TextEstimate(text)
}

func parseFinite(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// GenericText reads a property that may be a formula, select, title or rich
// text. The first non-empty representation wins.
func GenericText(prop any) string {
	obj, ok := jsonutil.Object(prop)
	if !ok {
		return ""
	}
	if formula, ok := jsonutil.Object(obj["formula"]); ok {
		if s := formulaText(formula); s != "" {
			return s
		}
	}
	if label := SelectLabel(prop); label != "" {
		return label
	}
	if t := PlainText(prop, ContainerTitle); t != "" {
		return t
	}
	if t := PlainText(prop, ContainerRichText); t != "" {
		return t
	}
	s, _ := jsonutil.String(obj["string"])
	return s
}

// formulaText renders the scalar result of a formula. The member named by
// "type" wins; payloads without a type are scanned.
func formulaText(formula map[string]any) string {
	if typ, _ := jsonutil.String(formula["type"]); typ != "" {
		if s := jsonutil.FlexibleStringValue(formula[typ]); s != "" {
			return s
		}
	}
	for _, key := range []string{"string", "number", "boolean"} {
		if s := jsonutil.FlexibleStringValue(formula[key]); s != "" {
			return s
		}
	}
	return ""
}

// FirstTitle returns the text of the first title-typed property of a row.
// Properties are visited in name order so the result is stable.
func FirstTitle(props map[string]any) string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prop := props[name]
		if typ, _ := jsonutil.String(jsonutil.Path(prop, "type")); typ != "title" {
			continue
		}
		if t := PlainText(prop, ContainerTitle); t != "" {
			return t
		}
	}
	return ""
}

// DateStart returns date.start of a date property.
func DateStart(prop any) string {
	s, _ := jsonutil.String(jsonutil.Path(prop, "date", "start"))
	return s
}

// People returns the users of a people property. The second result reports
// whether prop is a people property at all, so an explicitly empty list can be
// told apart from a missing column.
func People(prop any) ([]models.Assignee, bool) {
	items, ok := jsonutil.Array(jsonutil.Path(prop, "people"))
	if !ok {
		return nil, false
	}
	people := make([]models.Assignee, 0, len(items))
	for _, item := range items {
		id, _ := jsonutil.String(jsonutil.Path(item, "id"))
		if id == "" {
			continue
		}
		name, _ := jsonutil.String(jsonutil.Path(item, "name"))
		people = append(people, models.Assignee{ID: id, Name: name})
	}
	return people, true
}

// SpaceLabel returns the select option, or the first multi-select option, of
// a property.
func SpaceLabel(prop any) string {
	if name, _ := jsonutil.String(jsonutil.Path(prop, "select", "name")); name != "" {
		return name
	}
	if opts, ok := jsonutil.Array(jsonutil.Path(prop, "multi_select")); ok && len(opts) > 0 {
		name, _ := jsonutil.String(jsonutil.Path(opts[0], "name"))
		return name
	}
	return ""
}
