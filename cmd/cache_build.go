package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/iris-batch/internal/metrics"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
	"github.com/kozaktomas/iris-batch/internal/pipeline"
	"github.com/kozaktomas/iris-batch/internal/templates"
	"github.com/kozaktomas/iris-batch/internal/web"
)

var cacheBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Create missing templates for a pair list without matching",
	Long: `Create templates for every distinct image of the pair list that is not cached yet.

This runs only the template stage of verify. A later verify run over the same
pair list then only performs matching.

Examples:
  iris-batch cache build --input pairs.csv --dataset-dir dataset
  iris-batch cache build --input pairs.csv --concurrency 8 --json`,
	RunE: runCacheBuild,
}

func init() {
	cacheCmd.AddCommand(cacheBuildCmd)

	cacheBuildCmd.Flags().String("input", "", "Pair list CSV (required)")
	cacheBuildCmd.Flags().String("dataset-dir", "", "Dataset root, overrides DATASET_DIR")
	cacheBuildCmd.Flags().Int("concurrency", 0, "Parallel engine calls, overrides ENGINE_CONCURRENCY")
	cacheBuildCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
	_ = cacheBuildCmd.MarkFlagRequired("input")
}

// BuildCacheResult represents the result of a cache build
type BuildCacheResult struct {
	Dir       string `json:"dir"`
	Subjects  int    `json:"subjects"`
	Populated int    `json:"populated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Templates int    `json:"templates"`
}

func runCacheBuild(cmd *cobra.Command, args []string) error {
	inputPath := mustGetString(cmd, "input")
	jsonOutput := mustGetBool(cmd, "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDatasetFlags(cmd, cfg)

	pairs, err := pairlist.Read(inputPath)
	if err != nil {
		return err
	}

	client, release, err := openEngine(ctx, &cfg.Engine)
	if err != nil {
		return err
	}
	defer release()

	store, err := templates.Open(cfg.Dataset.TemplatesPath())
	if err != nil {
		return err
	}

	m := metrics.New()
	tracker := web.NewTracker("")
	stopServer, err := startStatusServer(cfg.Metrics.Addr, tracker, m)
	if err != nil {
		return err
	}
	defer stopServer()

	reporter := &progressReporter{}
	opts := pipeline.Options{
		Concurrency: cfg.Engine.Concurrency,
		Recorder:    m,
		OnProgress: func(p pipeline.Progress) {
			tracker.Update(p)
			if !jsonOutput {
				reporter.update(p)
			}
		},
	}

	pop, subjects, err := pipeline.NewRunner(store, client, opts).Populate(ctx, pairs, cfg.Dataset.Root)
	reporter.finish()
	if err != nil {
		return err
	}

	result := BuildCacheResult{
		Dir:       store.Dir(),
		Subjects:  subjects,
		Populated: pop.Populated,
		Skipped:   pop.Skipped,
		Failed:    pop.Failed,
		Templates: store.Count(),
	}
	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Template cache %s\n", result.Dir)
	fmt.Printf("  Subjects:  %d\n", result.Subjects)
	fmt.Printf("  Created:   %d\n", result.Populated)
	fmt.Printf("  Cached:    %d\n", result.Skipped)
	fmt.Printf("  Failed:    %d\n", result.Failed)
	fmt.Printf("  Templates: %d\n", result.Templates)
	return nil
}
