package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hookmill/hookmill/pkg/config"
	"github.com/hookmill/hookmill/pkg/lifecycle"
	"github.com/hookmill/hookmill/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded operation runs",
		Long: `History reads the audit store and reports past operation runs and the
hook executions recorded for each. The store must be enabled in the
configuration file.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded operation runs, most recent first",
		Example: `  # Last 20 runs
  hookmill history list

  # Page through older runs
  hookmill history list --limit 50 --offset 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := requireStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListOperationRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}
			for _, run := range runs {
				printRun(run)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its hook executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := requireStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetOperationRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			executions, err := store.ListHookExecutions(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(struct {
					Run        *lifecycle.OperationRecord       `json:"run"`
					Executions []*lifecycle.HookExecutionRecord `json:"executions"`
				}{run, executions}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			printRun(run)
			for _, exec := range executions {
				fmt.Printf("  [%s] %s (%s): %s", exec.Phase, exec.HookName, exec.Kind, exec.State)
				if exec.Error != "" {
					fmt.Printf(" (%s)", exec.Error)
				}
				fmt.Println()
			}
			return nil
		},
	}

	return cmd
}

func requireStore(cmd *cobra.Command, cfg *config.Config) (*stores.SQLiteStore, error) {
	if !cfg.Store.Enabled {
		return nil, fmt.Errorf("history store is not enabled; set store.enabled in the configuration")
	}
	return openStore(cmd.Context(), cfg)
}

func printRun(run *lifecycle.OperationRecord) {
	completed := "-"
	if run.CompletedAt != nil {
		completed = run.CompletedAt.Format("2006-01-02 15:04:05")
	}
	fmt.Printf("%s  %-9s %-9s started %s completed %s\n",
		run.ID, run.Operation, run.Status,
		run.StartedAt.Format("2006-01-02 15:04:05"), completed)
	if run.Error != "" {
		fmt.Printf("  error: %s\n", run.Error)
	}
}
