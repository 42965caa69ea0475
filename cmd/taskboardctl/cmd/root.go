package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/config"
)

// app holds what every subcommand needs once the root command has run.
type app struct {
	version string

	token      string
	databaseID string
	mapping    map[string]string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the taskboardctl command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	rootCmd := &cobra.Command{
		Use:   "taskboardctl",
		Short: "Inspect the merged Notion workload",
		Long: `taskboardctl queries Notion the same way the taskboard server does and
prints the result as JSON.

It reads the server configuration (config.yaml and environment), so the
shared workspace is included when NOTION_OWNER_ACCESS_TOKEN and
NOTION_OWNER_DATABASE_ID are set. A personal integration token can be added
with --token and --database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.token, "token", os.Getenv("NOTION_TOKEN"), "Notion integration token (env NOTION_TOKEN)")
	flags.StringVar(&a.databaseID, "database", os.Getenv("NOTION_DATABASE_ID"), "tasks database id used with --token (env NOTION_DATABASE_ID)")
	flags.StringToStringVar(&a.mapping, "map", nil, "property mapping for --token, e.g. --map title=Summary,due=Deadline")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log Notion calls to stderr")

	rootCmd.AddCommand(newTasksCmd(a), newPeopleCmd(a), newDatabasesCmd(a))
	return rootCmd
}

// Execute runs the root command
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.Load(a.version)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if !a.verbose {
		a.logger = zap.NewNop()
		return nil
	}
	// stdout is reserved for JSON output.
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.OutputPaths = []string{"stderr"}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
