package services

import (
	"context"
	"sync"

	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/normalize"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

// mockQuerier returns canned rows or errors per database id.
type mockQuerier struct {
	mu      sync.Mutex
	rows    map[string][]map[string]any
	errs    map[string]error
	block   map[string]bool
	queried []string
	tokens  []string
}

func (m *mockQuerier) QueryDatabase(ctx context.Context, token, databaseID string) ([]map[string]any, error) {
	m.mu.Lock()
	m.queried = append(m.queried, databaseID)
	m.tokens = append(m.tokens, token)
	blocked := m.block[databaseID]
	err := m.errs[databaseID]
	rows := m.rows[databaseID]
	m.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mockResolver returns fixed relation titles.
type mockResolver struct {
	titles normalize.RelationTitles
}

func (m *mockResolver) Resolve(ctx context.Context, rows []map[string]any, conn *models.Connection, mapping models.PropertyMapping) normalize.RelationTitles {
	if m.titles == nil {
		return normalize.RelationTitles{}
	}
	return m.titles
}

// mockDiscovery serves fixed workspace data.
type mockDiscovery struct {
	identity   notion.Identity
	databases  []models.Database
	listErr    error
	properties []models.PropertyInfo
	propsErr   error
	propsCalls []string
}

func (m *mockDiscovery) Identify(ctx context.Context, token string) notion.Identity {
	return m.identity
}

func (m *mockDiscovery) ListDatabases(ctx context.Context, token string) ([]models.Database, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.databases, nil
}

func (m *mockDiscovery) DatabaseProperties(ctx context.Context, token, databaseID string) ([]models.PropertyInfo, error) {
	m.propsCalls = append(m.propsCalls, databaseID)
	if m.propsErr != nil {
		return nil, m.propsErr
	}
	return m.properties, nil
}

// Row builders for the raw Notion property shapes.

func titleProp(s string) map[string]any {
	return map[string]any{"type": "title", "title": []any{map[string]any{"plain_text": s}}}
}

func statusProp(name string) map[string]any {
	return map[string]any{"type": "status", "status": map[string]any{"name": name}}
}

func selectProp(name string) map[string]any {
	return map[string]any{"type": "select", "select": map[string]any{"name": name}}
}

func peopleProp(people ...[2]string) map[string]any {
	list := make([]any, 0, len(people))
	for _, p := range people {
		list = append(list, map[string]any{"object": "user", "id": p[0], "name": p[1]})
	}
	return map[string]any{"type": "people", "people": list}
}

func row(id string, props map[string]any) map[string]any {
	return map[string]any{"object": "page", "id": id, "properties": props}
}

func conn(id, name, dbID string) models.Connection {
	return models.Connection{WorkspaceID: id, WorkspaceName: name, AccessToken: "secret_" + id, TasksDBID: dbID}
}
