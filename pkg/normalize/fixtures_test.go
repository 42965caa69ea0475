package normalize

// Builders for the raw property shapes returned by the Notion API.

func textItems(s string) []any {
	return []any{map[string]any{"plain_text": s}}
}

func titleProp(s string) map[string]any {
	return map[string]any{"type": "title", "title": textItems(s)}
}

func richTextProp(s string) map[string]any {
	return map[string]any{"type": "rich_text", "rich_text": textItems(s)}
}

func selectProp(name string) map[string]any {
	return map[string]any{"type": "select", "select": map[string]any{"name": name}}
}

func statusProp(name string) map[string]any {
	return map[string]any{"type": "status", "status": map[string]any{"name": name}}
}

func numberProp(n float64) map[string]any {
	return map[string]any{"type": "number", "number": n}
}

func dateProp(start string) map[string]any {
	return map[string]any{"type": "date", "date": map[string]any{"start": start}}
}

func relationProp(ids ...string) map[string]any {
	rel := make([]any, 0, len(ids))
	for _, id := range ids {
		rel = append(rel, map[string]any{"id": id})
	}
	return map[string]any{"type": "relation", "relation": rel}
}

func peopleProp(people ...[2]string) map[string]any {
	list := make([]any, 0, len(people))
	for _, p := range people {
		list = append(list, map[string]any{"object": "user", "id": p[0], "name": p[1]})
	}
	return map[string]any{"type": "people", "people": list}
}

func page(id string, props map[string]any) map[string]any {
	return map[string]any{"object": "page", "id": id, "properties": props}
}
