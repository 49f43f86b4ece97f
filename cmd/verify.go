package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/iris-batch/internal/config"
	"github.com/kozaktomas/iris-batch/internal/database"
	_ "github.com/kozaktomas/iris-batch/internal/database/mariadb"
	_ "github.com/kozaktomas/iris-batch/internal/database/postgres"
	"github.com/kozaktomas/iris-batch/internal/metrics"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
	"github.com/kozaktomas/iris-batch/internal/pipeline"
	"github.com/kozaktomas/iris-batch/internal/templates"
	"github.com/kozaktomas/iris-batch/internal/web"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Score every pair of an iris pair list",
	Long: `Create templates for every distinct image of the pair list and score every pair.

The input is a CSV file with a header row and three columns: left image, right
image and label. Image paths are relative to the dataset directory. Templates are
cached in <dataset>/templates and reused by later runs.

The output CSV has the columns status,iris1,iris2,label,score with one row per
input pair in input order. Pairs whose template could not be created are
reported with status ERROR and score 0.

Examples:
  # Score pairs relative to ./dataset
  iris-batch verify --input pairs.csv --output results.csv --dataset-dir dataset

  # Archive the run in the configured database and print a JSON summary
  iris-batch verify --input pairs.csv --output results.csv --archive --json`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("input", "", "Pair list CSV (required)")
	verifyCmd.Flags().String("output", "", "Result CSV to write (required)")
	verifyCmd.Flags().String("dataset-dir", "", "Dataset root, overrides DATASET_DIR")
	verifyCmd.Flags().Int("concurrency", 0, "Parallel engine calls, overrides ENGINE_CONCURRENCY")
	verifyCmd.Flags().Bool("json", false, "Output a JSON summary instead of progress bars")
	verifyCmd.Flags().Bool("archive", false, "Store the run and its results in DATABASE_URL")
	_ = verifyCmd.MarkFlagRequired("input")
	_ = verifyCmd.MarkFlagRequired("output")
}

// VerifyResult represents the result of a verify run
type VerifyResult struct {
	RunID         string `json:"run_id"`
	Output        string `json:"output"`
	Pairs         int    `json:"pairs"`
	OK            int    `json:"ok"`
	Errors        int    `json:"errors"`
	Subjects      int    `json:"subjects"`
	Populated     int    `json:"populated"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	Archived      bool   `json:"archived"`
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration_human,omitempty"`
}

// applyDatasetFlags layers command flags over the loaded configuration.
func applyDatasetFlags(cmd *cobra.Command, cfg *config.Config) {
	if dir := mustGetString(cmd, "dataset-dir"); dir != "" {
		cfg.Dataset.Root = dir
	}
	if cmd.Flags().Lookup("concurrency") == nil {
		return
	}
	if n := mustGetInt(cmd, "concurrency"); n > 0 {
		cfg.Engine.Concurrency = n
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	inputPath := mustGetString(cmd, "input")
	outputPath := mustGetString(cmd, "output")
	jsonOutput := mustGetBool(cmd, "json")
	archive := mustGetBool(cmd, "archive")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDatasetFlags(cmd, cfg)
	if archive && cfg.Database.URL == "" {
		return errors.New("--archive requires DATABASE_URL")
	}

	pairs, err := pairlist.Read(inputPath)
	if err != nil {
		return err
	}

	// licenses first: a denied session must leave the dataset untouched
	client, release, err := openEngine(ctx, &cfg.Engine)
	if err != nil {
		return err
	}
	defer release()

	store, err := templates.Open(cfg.Dataset.TemplatesPath())
	if err != nil {
		return err
	}
	slog.Debug("template store opened", "dir", store.Dir(), "templates", store.Count())

	runID := uuid.New()
	m := metrics.New()
	tracker := web.NewTracker(runID.String())
	stopServer, err := startStatusServer(cfg.Metrics.Addr, tracker, m)
	if err != nil {
		return err
	}
	defer stopServer()

	reporter := &progressReporter{}
	opts := pipeline.Options{
		RunID:       runID,
		Concurrency: cfg.Engine.Concurrency,
		Recorder:    m,
		OnProgress: func(p pipeline.Progress) {
			tracker.Update(p)
			if !jsonOutput {
				reporter.update(p)
			}
		},
	}

	report, err := pipeline.NewRunner(store, client, opts).Run(ctx, pairs, cfg.Dataset.Root)
	reporter.finish()
	if err != nil {
		return err
	}

	rows := pipeline.Assemble(report.Results)
	if err := pairlist.WriteResults(outputPath, rows); err != nil {
		return err
	}

	result := VerifyResult{
		RunID:         report.RunID.String(),
		Output:        outputPath,
		Pairs:         len(rows),
		OK:            report.OK,
		Errors:        report.Errors,
		Subjects:      report.Subjects,
		Populated:     report.Population.Populated,
		Skipped:       report.Population.Skipped,
		Failed:        report.Population.Failed,
		DurationMs:    report.Duration.Milliseconds(),
		DurationHuman: formatDuration(report.Duration),
	}

	if archive {
		run := storedRun(report, inputPath, outputPath, cfg.Engine.MatchingThreshold)
		if err := archiveRun(ctx, &cfg.Database, run, rows); err != nil {
			// the CSV is already written and stays valid
			slog.Error("failed to archive run", "run_id", result.RunID, "error", err)
		} else {
			result.Archived = true
		}
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Run %s finished in %s\n", result.RunID, result.DurationHuman)
	fmt.Printf("  Templates: %d subjects, %d created, %d cached, %d failed\n",
		result.Subjects, result.Populated, result.Skipped, result.Failed)
	fmt.Printf("  Pairs:     %d total, %d OK, %d ERROR\n", result.Pairs, result.OK, result.Errors)
	fmt.Printf("  Output:    %s\n", result.Output)
	if result.Archived {
		fmt.Println("  Archived:  yes")
	}
	return nil
}

func storedRun(report *pipeline.Report, input, output string, threshold int) database.StoredRun {
	return database.StoredRun{
		ID:                report.RunID.String(),
		StartedAt:         report.StartedAt,
		Duration:          report.Duration,
		InputFile:         input,
		OutputFile:        output,
		MatchingThreshold: threshold,
		Subjects:          report.Subjects,
		Populated:         report.Population.Populated,
		Skipped:           report.Population.Skipped,
		Failed:            report.Population.Failed,
		Pairs:             len(report.Results),
		OK:                report.OK,
		Errors:            report.Errors,
	}
}

func archiveRun(ctx context.Context, cfg *config.DatabaseConfig, run database.StoredRun, rows []pairlist.ResultRow) error {
	repo, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.SaveRun(ctx, run, rows)
}
