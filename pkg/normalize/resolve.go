package normalize

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// Strategy yields the properties of a row that may back a field, most
// preferred first. mapped is the workspace's explicit property name for the
// field ("" when unmapped) and names are its conventional names.
type Strategy func(props map[string]any, mapped string, names []string) []any

// Mapped yields the explicitly mapped property when the row has it.
func Mapped(props map[string]any, mapped string, _ []string) []any {
	if mapped == "" {
		return nil
	}
	if v, ok := props[mapped]; ok {
		return []any{v}
	}
	return nil
}

// MappedCaseInsensitive yields the mapped property matched ignoring case, so
// a mapping typed as "story pts" still beats any conventional name.
func MappedCaseInsensitive(props map[string]any, mapped string, _ []string) []any {
	if mapped == "" {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if key, ok := matchFolded(keys, mapped); ok {
		return []any{props[key]}
	}
	return nil
}

// Conventional yields each conventionally named property the row has, in
// convention order.
func Conventional(props map[string]any, _ string, names []string) []any {
	var out []any
	for _, name := range names {
		if v, ok := props[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// CaseInsensitive matches the mapped and conventional names against the row
// ignoring case and singular/plural drift ("story points" matches
// "Story Point").
func CaseInsensitive(props map[string]any, mapped string, names []string) []any {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	candidates := names
	if mapped != "" {
		candidates = append([]string{mapped}, names...)
	}

	var out []any
	for _, cand := range candidates {
		if key, ok := matchFolded(keys, cand); ok {
			out = append(out, props[key])
		}
	}
	return out
}

func matchFolded(keys []string, cand string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(cand))
	if lower == "" {
		return "", false
	}
	for _, k := range keys {
		if strings.ToLower(strings.TrimSpace(k)) == lower {
			return k, true
		}
	}
	folded := inflection.Singular(lower)
	for _, k := range keys {
		if inflection.Singular(strings.ToLower(strings.TrimSpace(k))) == folded {
			return k, true
		}
	}
	return "", false
}

// Chains used by the normalizer. Only the numeric estimate field tolerates
// naming drift; the other fields match names exactly.
var (
	DefaultChain  = []Strategy{Mapped, Conventional}
	EstimateChain = []Strategy{Mapped, MappedCaseInsensitive, Conventional, CaseInsensitive}
)

// Resolve runs the strategy chain and returns the first candidate that the
// extractor accepts.
func Resolve[T any](props map[string]any, mapped string, names []string, chain []Strategy, extract func(any) (T, bool)) (T, bool) {
	for _, strategy := range chain {
		for _, candidate := range strategy(props, mapped, names) {
			if v, ok := extract(candidate); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

// ResolveText is Resolve for string extractors, where "" means not found.
func ResolveText(props map[string]any, mapped string, names []string, chain []Strategy, extract func(any) string) string {
	v, _ := Resolve(props, mapped, names, chain, nonEmpty(extract))
	return v
}

func nonEmpty(extract func(any) string) func(any) (string, bool) {
	return func(prop any) (string, bool) {
		s := extract(prop)
		return s, s != ""
	}
}

func richText(prop any) string { return PlainText(prop, ContainerRichText) }

func titleText(prop any) string { return PlainText(prop, ContainerTitle) }

// relationOrText prefers the first inline relation name and falls back to
// rich text.
func relationOrText(prop any) string {
	if names := RelationDisplayNames(prop); len(names) > 0 {
		return names[0]
	}
	return richText(prop)
}
