package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set during build via -ldflags
var (
	Version     = "0.1.0"
	BuildDate   = "unknown"
	BuildCommit = "dev"
)

const projectRepo = "github.com/ducminhle1904/crypto-decision-engine"

// VersionInfo contains version and build information
type VersionInfo struct {
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	BuildCommit  string `json:"build_commit"`
	GoVersion    string `json:"go_version"`
	Architecture string `json:"architecture"`
	Repository   string `json:"repository"`
}

// GetVersionInfo returns complete version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildDate:    BuildDate,
		BuildCommit:  BuildCommit,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
		Repository:   projectRepo,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fusion v%s\n", info.Version)
			fmt.Fprintf(out, "Build: %s (%s)\n", info.BuildCommit, info.BuildDate)
			fmt.Fprintf(out, "Go: %s (%s)\n", info.GoVersion, info.Architecture)
			fmt.Fprintf(out, "%s\n", info.Repository)
		},
	}
}
