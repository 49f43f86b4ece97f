package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/iris-batch/internal/constants"
	"github.com/kozaktomas/iris-batch/internal/database"
	_ "github.com/kozaktomas/iris-batch/internal/database/mariadb"
	_ "github.com/kozaktomas/iris-batch/internal/database/postgres"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Archived verification runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the result rows of an archived run as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().Int("limit", constants.DefaultRunsLimit, "Maximum number of runs to list")
	runsListCmd.Flags().Bool("json", false, "Output as JSON")
}

func openArchive(ctx context.Context) (database.RunRepository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, &cfg.Database)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")
	ctx := cmd.Context()

	repo, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		return outputJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tPAIRS\tOK\tERROR\tINPUT")
	fmt.Fprintln(w, "------\t-------\t--------\t-----\t--\t-----\t-----")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), formatDuration(run.Duration),
			run.Pairs, run.OK, run.Errors, run.InputFile)
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	rows, err := repo.GetResults(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", args[0], err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s has no archived results", args[0])
	}
	return pairlist.Format(os.Stdout, rows)
}
