package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/iris-batch/internal/engine/remote"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// VersionInfo describes the binary and the engine bridge API it expects
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go_version"`
	EngineAPI string `json:"engine_api"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo()
		if mustGetBool(cmd, "json") {
			return outputJSON(info)
		}
		fmt.Printf("iris-batch %s\n", info.Version)
		fmt.Printf("  Commit:     %s\n", info.Commit)
		fmt.Printf("  Built:      %s\n", info.Built)
		fmt.Printf("  Go:         %s\n", info.GoVersion)
		fmt.Printf("  Engine API: %s\n", info.EngineAPI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}

// versionInfo falls back to the module version recorded by `go install` when
// no ldflags were given.
func versionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		Commit:    CommitSHA,
		Built:     BuildDate,
		GoVersion: runtime.Version(),
		EngineAPI: remote.APIVersion,
	}
	if info.Version != "dev" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	return info
}
