package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/normalize"
	"github.com/ekaya-inc/taskboard/pkg/notion"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

func newTasksCmd(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Print the merged task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workload, conns, mappings, err := a.workload(cmd.Context())
			if err != nil {
				return err
			}

			result := workload.GetTasks(cmd.Context(), conns, mappings)
			if !result.OK {
				return errors.New(result.Message)
			}
			if status != "" {
				kept := make([]models.Task, 0, len(result.Tasks))
				for _, t := range result.Tasks {
					if string(t.StatusBucket) == status {
						kept = append(kept, t)
					}
				}
				result.Tasks = kept
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only tasks in this bucket (done, blocked, in_progress, queued)")
	return cmd
}

func newPeopleCmd(a *app) *cobra.Command {
	var load string

	cmd := &cobra.Command{
		Use:   "people",
		Short: "Print tasks grouped by assignee with their load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workload, conns, mappings, err := a.workload(cmd.Context())
			if err != nil {
				return err
			}

			result := workload.GetPeople(cmd.Context(), conns, mappings)
			if !result.OK {
				return errors.New(result.Message)
			}
			if load != "" {
				kept := make([]models.Person, 0, len(result.People))
				for _, p := range result.People {
					if string(p.Load) == load {
						kept = append(kept, p)
					}
				}
				result.People = kept
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&load, "load", "", "only people with this load (light, balanced, heavy)")
	return cmd
}

// workload builds the aggregation service the server uses, plus the
// connection given on the command line.
func (a *app) workload(ctx context.Context) (services.WorkloadService, []models.Connection, models.MappingSet, error) {
	conventions, err := normalize.LoadConventions(a.cfg.ConventionsFile)
	if err != nil {
		return nil, nil, nil, err
	}

	client := notion.NewClient(a.cfg.Notion, a.logger)
	resolver := normalize.NewRelationResolver(client, conventions,
		a.cfg.Relations.MaxConcurrency, a.cfg.Relations.FetchTimeout, a.logger)
	workload := services.NewWorkloadService(
		services.WorkloadConfig{Shared: a.cfg.Shared.Connection(), Mode: a.cfg.Aggregation.Mode},
		client, resolver, normalize.NewNormalizer(conventions), a.logger)

	if a.token == "" {
		return workload, nil, nil, nil
	}
	if a.databaseID == "" {
		return nil, nil, nil, fmt.Errorf("--database is required with --token")
	}

	identity := notion.NewDiscovery(a.cfg.Notion, a.logger).Identify(ctx, a.token)
	conn := models.Connection{
		WorkspaceID:   identity.WorkspaceID,
		WorkspaceName: identity.WorkspaceName,
		AccessToken:   a.token,
		TasksDBID:     a.databaseID,
		ConnectedAt:   time.Now().UTC(),
	}

	raw := make(map[string]any, len(a.mapping))
	for k, v := range a.mapping {
		raw[k] = v
	}
	mappings := models.MappingSet{conn.WorkspaceID: models.SanitizeMapping(raw)}

	return workload, []models.Connection{conn}, mappings, nil
}
