package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬ ┬┌─┐┌─┐┌┬┐
  │││├┤ ├┤  │
  └┴┘└─┘└   ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "weft",
		Short: "Tooling for the weft reactive runtime",
		Long: `Weft is a fine-grained reactive runtime for Go.

Signals hold state, memos derive from it, and effects run when their
inputs change. This CLI drives the runtime from the command line:

  • Run benchmark scenarios against generated dependency graphs
  • Record event traces into SQLite and archive them as NDJSON
  • Export dependency graphs as Graphviz DOT
  • Serve the live graph inspector with Prometheus metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		benchCmd(),
		graphCmd(),
		serveCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the weft ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
