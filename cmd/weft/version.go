package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildInfo is the version metadata the command prints. Release builds
// inject the package-level vars via ldflags; everything left at its
// default is resolved from the binary's embedded build info instead,
// so even a plain `go install` reports its VCS revision.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
	Module  string
	Dirty   bool
}

func resolveBuildInfo() buildInfo {
	bi := buildInfo{Version: version, Commit: commit, Date: date}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	bi.Module = info.Main.Path
	if bi.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		bi.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if bi.Commit == "none" {
				bi.Commit = s.Value
			}
		case "vcs.time":
			if bi.Date == "unknown" {
				bi.Date = s.Value
			}
		case "vcs.modified":
			bi.Dirty = s.Value == "true"
		}
	}
	return bi
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version, commit, and build information for the weft CLI.`,
		Run: func(cmd *cobra.Command, args []string) {
			bi := resolveBuildInfo()
			if short {
				fmt.Println(bi.Version)
				return
			}

			commit := bi.Commit
			if bi.Dirty {
				commit += " (dirty)"
			}

			printBanner()
			fmt.Println()
			fmt.Printf("  Version:    %s\n", bi.Version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Built:      %s\n", bi.Date)
			if bi.Module != "" {
				fmt.Printf("  Module:     %s\n", bi.Module)
			}
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Println()
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
