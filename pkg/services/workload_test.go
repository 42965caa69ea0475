package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/config"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/normalize"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

func newWorkload(cfg WorkloadConfig, q *mockQuerier, titles normalize.RelationTitles) WorkloadService {
	return NewWorkloadService(cfg, q, &mockResolver{titles: titles}, normalize.NewNormalizer(nil), zap.NewNop())
}

func TestAggregate_NoConnections(t *testing.T) {
	svc := newWorkload(WorkloadConfig{}, &mockQuerier{}, nil)

	_, err := svc.Aggregate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoConnections)

	result := svc.GetTasks(context.Background(), nil, nil)
	assert.False(t, result.OK)
	assert.NotNil(t, result.Tasks)
	assert.Empty(t, result.Tasks)
	assert.Equal(t, NoConnectionsMessage, result.Message)
	assert.ErrorIs(t, result.Err, apperrors.ErrNoConnections)

	people := svc.GetPeople(context.Background(), nil, nil)
	assert.False(t, people.OK)
	assert.NotNil(t, people.People)
	assert.Empty(t, people.People)
}

func TestAggregate_SkipsConnectionsWithoutTasksDatabase(t *testing.T) {
	q := &mockQuerier{rows: map[string][]map[string]any{
		"db-1": {row("p1", map[string]any{"Name": titleProp("Ship it")})},
	}}
	svc := newWorkload(WorkloadConfig{}, q, nil)

	conns := []models.Connection{
		conn("ws-unconfigured", "Half done", ""),
		conn("ws-1", "Acme", "db-1"),
	}
	workload, err := svc.Aggregate(context.Background(), conns, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"db-1"}, q.queried)
	require.Len(t, workload.Tasks, 1)
	assert.Equal(t, "Ship it", workload.Tasks[0].Title)
	assert.Equal(t, "ws-1", workload.Tasks[0].WorkspaceID)
	assert.Equal(t, "db-1", workload.Tasks[0].DatabaseID)
}

func TestAggregate_OnlyUnconfiguredConnectionsIsEmptyState(t *testing.T) {
	svc := newWorkload(WorkloadConfig{}, &mockQuerier{}, nil)

	_, err := svc.Aggregate(context.Background(), []models.Connection{conn("ws-1", "Acme", "")}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoConnections)
}

func TestAggregate_SharedConnectionPrependedAndMasked(t *testing.T) {
	shared := &models.Connection{
		WorkspaceID:   "shared-workspace",
		WorkspaceName: "Shared Notion Workspace",
		AccessToken:   "secret_owner",
		TasksDBID:     "owner-db",
		Shared:        true,
	}
	q := &mockQuerier{rows: map[string][]map[string]any{
		"owner-db": {row("s1", map[string]any{"Name": titleProp("Shared task")})},
		"db-1":     {row("p1", map[string]any{"Name": titleProp("Own task")})},
	}}
	svc := newWorkload(WorkloadConfig{Shared: shared}, q, nil)

	workload, err := svc.Aggregate(context.Background(), []models.Connection{conn("ws-1", "Acme", "db-1")}, nil)
	require.NoError(t, err)

	require.Len(t, workload.Tasks, 2)
	assert.Equal(t, "Shared task", workload.Tasks[0].Title)
	assert.Equal(t, models.SharedDatabaseLabel, workload.Tasks[0].DatabaseID)
	assert.Equal(t, "Own task", workload.Tasks[1].Title)
	assert.Equal(t, "db-1", workload.Tasks[1].DatabaseID)
	assert.Contains(t, q.tokens, "secret_owner")
}

func TestAggregate_SharedConnectionAloneIsEnough(t *testing.T) {
	shared := &models.Connection{WorkspaceID: "shared", WorkspaceName: "Shared", AccessToken: "secret_owner", TasksDBID: "owner-db", Shared: true}
	q := &mockQuerier{rows: map[string][]map[string]any{"owner-db": {}}}
	svc := newWorkload(WorkloadConfig{Shared: shared}, q, nil)

	result := svc.GetTasks(context.Background(), nil, nil)
	assert.True(t, result.OK)
	assert.Empty(t, result.Tasks)
}

func TestAggregate_AppliesPerWorkspaceMapping(t *testing.T) {
	props := map[string]any{
		"Name":   titleProp("Task"),
		"Status": statusProp("Done"),
		"Stage":  selectProp("Blocked"),
	}
	q := &mockQuerier{rows: map[string][]map[string]any{
		"db-1": {row("p1", props)},
		"db-2": {row("p2", props)},
	}}
	svc := newWorkload(WorkloadConfig{}, q, nil)

	mappings := models.MappingSet{"ws-2": {models.FieldStatus: "Stage"}}
	workload, err := svc.Aggregate(context.Background(), []models.Connection{
		conn("ws-1", "Acme", "db-1"),
		conn("ws-2", "Globex", "db-2"),
	}, mappings)
	require.NoError(t, err)

	require.Len(t, workload.Tasks, 2)
	assert.Equal(t, "Done", workload.Tasks[0].Status)
	assert.Equal(t, "Blocked", workload.Tasks[1].Status)
}

func TestAggregate_UsesRelationTitles(t *testing.T) {
	q := &mockQuerier{rows: map[string][]map[string]any{
		"db-1": {row("p1", map[string]any{
			"Name": titleProp("Task"),
			"Project": map[string]any{"type": "relation", "relation": []any{
				map[string]any{"id": "proj-1", "name": "stale"},
			}},
		})},
	}}
	svc := newWorkload(WorkloadConfig{}, q, normalize.RelationTitles{"proj-1": "Apollo"})

	workload, err := svc.Aggregate(context.Background(), []models.Connection{conn("ws-1", "Acme", "db-1")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", workload.Tasks[0].Project)
}

func TestAggregate_AllOrNothingFailsFast(t *testing.T) {
	upstream := &notion.APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "API token is invalid."}
	q := &mockQuerier{
		rows:  map[string][]map[string]any{"db-1": {row("p1", map[string]any{})}},
		errs:  map[string]error{"db-2": upstream},
		block: map[string]bool{"db-3": true},
	}
	svc := newWorkload(WorkloadConfig{Mode: config.ModeAllOrNothing}, q, nil)

	result := svc.GetTasks(context.Background(), []models.Connection{
		conn("ws-1", "Acme", "db-1"),
		conn("ws-2", "Globex", "db-2"),
		conn("ws-3", "Initech", "db-3"),
	}, nil)

	assert.False(t, result.OK)
	assert.Empty(t, result.Tasks)
	assert.Equal(t, "API token is invalid.", result.Message)

	var apiErr *notion.APIError
	require.ErrorAs(t, result.Err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	var connErr *ConnectionError
	require.ErrorAs(t, result.Err, &connErr)
	assert.Equal(t, "ws-2", connErr.WorkspaceID)
}

func TestAggregate_PartialKeepsHealthyWorkspaces(t *testing.T) {
	q := &mockQuerier{
		rows: map[string][]map[string]any{"db-1": {row("p1", map[string]any{"Name": titleProp("Fine")})}},
		errs: map[string]error{"db-2": &notion.APIError{Status: http.StatusNotFound, Message: "Could not find database"}},
	}
	svc := newWorkload(WorkloadConfig{Mode: config.ModePartial}, q, nil)

	result := svc.GetTasks(context.Background(), []models.Connection{
		conn("ws-1", "Acme", "db-1"),
		conn("ws-2", "Globex", "db-2"),
	}, nil)

	require.True(t, result.OK)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "Fine", result.Tasks[0].Title)
	assert.Equal(t, []WorkspaceError{
		{WorkspaceID: "ws-2", WorkspaceName: "Globex", Message: "Could not find database"},
	}, result.Errors)
}

func TestAggregate_PartialAllFailedIsFailure(t *testing.T) {
	q := &mockQuerier{errs: map[string]error{
		"db-1": errors.New("dial tcp: connection refused"),
	}}
	svc := newWorkload(WorkloadConfig{Mode: config.ModePartial}, q, nil)

	result := svc.GetTasks(context.Background(), []models.Connection{conn("ws-1", "Acme", "db-1")}, nil)
	assert.False(t, result.OK)
	assert.Equal(t, "dial tcp: connection refused", result.Message)
}

func TestConnectionError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"upstream message passes through", &notion.APIError{Status: 401, Message: "API token is invalid."}, "API token is invalid."},
		{"empty upstream message falls back", &notion.APIError{Status: 502}, "Failed to query Notion for workspace Acme"},
		{"transport error passes through", errors.New("timeout"), "timeout"},
		{"nil cause falls back", nil, "Failed to query Notion for workspace Acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ConnectionError{WorkspaceID: "ws-1", WorkspaceName: "Acme", Err: tt.err}
			assert.Equal(t, tt.want, e.Error())
		})
	}
}

func TestGetPeople_GroupsAndClassifies(t *testing.T) {
	var rows []map[string]any
	for i := 0; i < 7; i++ {
		rows = append(rows, row(fmt.Sprintf("a%d", i), map[string]any{
			"Name":     titleProp(fmt.Sprintf("Alice %d", i)),
			"Assignee": peopleProp([2]string{"u-alice", "Alice"}),
			"Space":    selectProp("Engineering"),
		}))
	}
	for i := 0; i < 4; i++ {
		rows = append(rows, row(fmt.Sprintf("b%d", i), map[string]any{
			"Name":  titleProp(fmt.Sprintf("Bob %d", i)),
			"Owner": peopleProp([2]string{"u-bob", "Bob"}),
		}))
	}
	rows = append(rows, row("n1", map[string]any{
		"Name":     titleProp("Nobody"),
		"Assignee": map[string]any{"type": "people", "people": []any{}},
		"Owner":    peopleProp([2]string{"u-bob", "Bob"}),
	}))

	q := &mockQuerier{rows: map[string][]map[string]any{"db-1": rows}}
	svc := newWorkload(WorkloadConfig{}, q, nil)

	result := svc.GetPeople(context.Background(), []models.Connection{conn("ws-1", "Acme", "db-1")}, nil)
	require.True(t, result.OK)
	require.Len(t, result.People, 3)

	alice, bob, nobody := result.People[0], result.People[1], result.People[2]

	assert.Equal(t, "u-alice", alice.ID)
	assert.Equal(t, models.LoadHeavy, alice.Load)
	assert.Equal(t, models.DefaultRole, alice.Role)
	assert.Equal(t, []string{"Engineering"}, alice.Spaces)
	assert.Equal(t, []string{"db-1"}, alice.Databases)

	assert.Equal(t, "u-bob", bob.ID)
	assert.Len(t, bob.Tasks, 4)
	assert.Equal(t, models.LoadBalanced, bob.Load)
	assert.Equal(t, []string{"Acme"}, bob.Spaces)

	assert.Equal(t, models.UnassignedID, nobody.ID)
	assert.Equal(t, models.UnassignedName, nobody.Name)
	assert.Equal(t, models.LoadLight, nobody.Load)
	require.Len(t, nobody.Tasks, 1)
	assert.Equal(t, "Nobody", nobody.Tasks[0].Title)
}

func TestGroupPeople_LoadBoundaries(t *testing.T) {
	build := func(n int) []models.Task {
		tasks := make([]models.Task, n)
		for i := range tasks {
			tasks[i] = models.Task{Title: "t", Assignees: []models.Assignee{{ID: "u1", Name: "U"}}}
		}
		return tasks
	}

	tests := []struct {
		count int
		want  models.Load
	}{
		{3, models.LoadLight},
		{4, models.LoadBalanced},
		{6, models.LoadBalanced},
		{7, models.LoadHeavy},
	}
	for _, tt := range tests {
		people := GroupPeople(build(tt.count))
		require.Len(t, people, 1)
		assert.Equal(t, tt.want, people[0].Load, "count %d", tt.count)
	}
}

func TestGroupPeople_MultipleAssigneesAndSharedLabel(t *testing.T) {
	tasks := []models.Task{
		{Title: "pair", Space: "Ops", DatabaseID: models.SharedDatabaseLabel, Assignees: []models.Assignee{{ID: "u1", Name: "One"}, {ID: "u2"}}},
	}

	people := GroupPeople(tasks)
	require.Len(t, people, 2)
	assert.Equal(t, "One", people[0].Name)
	assert.Equal(t, models.UnassignedName, people[1].Name, "missing names use the unassigned label")
	assert.Equal(t, []string{models.SharedDatabaseLabel}, people[0].Databases)
	assert.Equal(t, []string{"Ops"}, people[1].Spaces)
}

func TestGroupPeople_Empty(t *testing.T) {
	people := GroupPeople(nil)
	assert.NotNil(t, people)
	assert.Empty(t, people)
}
