package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Template cache management commands",
	Long:  `Commands for inspecting and warming the on-disk template cache.`,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}
