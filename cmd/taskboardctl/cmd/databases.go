package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/notion"
)

type databasesOutput struct {
	Databases []models.Database         `json:"databases"`
	Detected  *models.DetectedDatabases `json:"detected,omitempty"`
}

func newDatabasesCmd(a *app) *cobra.Command {
	var detect bool

	cmd := &cobra.Command{
		Use:   "databases",
		Short: "List the databases shared with --token",
		Long: `List the databases shared with the integration token.

With --detect, also print which databases would be picked as the tasks,
projects and sprints databases when connecting the token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.token == "" {
				return errors.New("--token is required")
			}

			databases, err := notion.NewDiscovery(a.cfg.Notion, a.logger).ListDatabases(cmd.Context(), a.token)
			if err != nil {
				return err
			}

			out := databasesOutput{Databases: databases}
			if detect {
				detected := notion.DetectDatabases(databases)
				out.Detected = &detected
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&detect, "detect", false, "also report auto-detected tasks/projects/sprints databases")
	return cmd
}
