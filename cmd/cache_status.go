package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/iris-batch/internal/templates"
)

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the template cache location and size",
	RunE:  runCacheStatus,
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)

	cacheStatusCmd.Flags().String("dataset-dir", "", "Dataset root, overrides DATASET_DIR")
	cacheStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

// CacheStatus describes the on-disk template cache
type CacheStatus struct {
	Dir       string `json:"dir"`
	Exists    bool   `json:"exists"`
	Templates int    `json:"templates"`
}

// cacheStatus reads the cache without creating it.
func cacheStatus(dir string) (CacheStatus, error) {
	store, err := templates.OpenExisting(dir)
	if errors.Is(err, os.ErrNotExist) {
		return CacheStatus{Dir: dir}, nil
	}
	if err != nil {
		return CacheStatus{}, err
	}
	return CacheStatus{Dir: store.Dir(), Exists: true, Templates: store.Count()}, nil
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDatasetFlags(cmd, cfg)

	status, err := cacheStatus(cfg.Dataset.TemplatesPath())
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(status)
	}

	fmt.Printf("Template cache: %s\n", status.Dir)
	if !status.Exists {
		fmt.Println("Templates:      none (directory does not exist)")
		return nil
	}
	fmt.Printf("Templates:      %d\n", status.Templates)
	return nil
}
