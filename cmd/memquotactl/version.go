package main

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const libraryPath = "github.com/joshuapare/memquota"

// buildInfo describes the running binary.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Library   string `json:"library"` // memquota module version linked into the binary
}

func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Library:   "unknown",
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, dep := range bi.Deps {
		if dep.Path != libraryPath {
			continue
		}
		info.Library = dep.Version
		if dep.Replace != nil {
			info.Library = "replaced by " + dep.Replace.Path
		}
	}
	// Stamped VCS metadata wins over the ldflags defaults.
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && commit == "none" {
			info.Commit = s.Value
		}
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func runVersion() error {
	info := currentBuildInfo()
	if jsonOut {
		return printJSON(info)
	}
	printInfo("memquotactl %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
	printInfo("  memquota: %s\n", info.Library)
	printInfo("  commit:   %s\n", info.Commit)
	printInfo("  built:    %s\n", info.Built)
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
