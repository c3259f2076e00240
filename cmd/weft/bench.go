package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/weft-dev/weft/internal/scenario"
	"github.com/weft-dev/weft/pkg/record"
	"github.com/weft-dev/weft/pkg/weft"
)

func benchCmd() *cobra.Command {
	var (
		file       string
		recordPath string
		archiveDir string
		runs       int
	)

	cmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "Run a benchmark scenario",
		Long: `Run a write workload against a generated dependency graph.

The scenario is a builtin name (` + strings.Join(scenario.Builtins(), ", ") + `)
or a YAML file passed with --file. Each run drives the scenario's
writes through the root signal and reports how the graph propagated.

With --record the full event trace of the run is written into a
SQLite file; --archive-dir additionally exports it as NDJSON.

Examples:
  weft bench chain
  weft bench grid --runs=5
  weft bench --file=scenario.yaml --record=trace.db --archive-dir=traces`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "chain"
			if len(args) > 0 {
				name = args[0]
			}
			return runBench(name, file, recordPath, archiveDir, runs)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Scenario YAML file (overrides the builtin name)")
	cmd.Flags().StringVar(&recordPath, "record", "", "Record the event trace into this SQLite file")
	cmd.Flags().StringVar(&archiveDir, "archive-dir", "", "Archive the recorded trace as NDJSON into this directory")
	cmd.Flags().IntVar(&runs, "runs", 1, "Number of times to run the write workload")

	return cmd
}

func runBench(name, file, recordPath, archiveDir string, runs int) error {
	sc, err := loadScenario(name, file)
	if err != nil {
		return err
	}
	if runs < 1 {
		runs = 1
	}
	if archiveDir != "" && recordPath == "" {
		return fmt.Errorf("--archive-dir requires --record")
	}

	var opts []weft.RuntimeOption
	var store *record.Store
	var rec *record.Recorder
	if recordPath != "" {
		store, err = record.Open(recordPath)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err = record.NewRecorder(store, sc.Name)
		if err != nil {
			return err
		}
		opts = append(opts, weft.WithObserver(rec))
	}

	rt := weft.NewRuntime(opts...)
	defer rt.Dispose()

	runner, err := sc.Build(rt)
	if err != nil {
		return err
	}

	info("scenario %s: %s", sc.Name, sc.Description)
	fmt.Println()

	for i := 0; i < runs; i++ {
		result := runner.Run()
		success("run %d: %s", i+1, result)
	}

	if rec == nil {
		return nil
	}

	// Dispose before closing so the trace ends with the disposal events.
	rt.Dispose()
	if err := rec.Close(); err != nil {
		return err
	}
	if n := rec.Dropped(); n > 0 {
		warn("%d events dropped by the recorder", n)
	}

	ctx := context.Background()
	summary, err := store.Summary(ctx, rec.RunID())
	if err != nil {
		return err
	}
	fmt.Println()
	success("trace recorded: %s (run %s)", recordPath, rec.RunID())
	info("%d events: %d writes, %d evaluations, %d flushes, %d errors, %s evaluating",
		summary.Events, summary.Writes, summary.Evals, summary.Flushes,
		summary.Errors, summary.EvalTime)

	if archiveDir != "" {
		if err := rec.ArchiveTo(ctx, record.NewFSArchive(archiveDir)); err != nil {
			return err
		}
		success("archived: %s/%s.ndjson", archiveDir, rec.RunID())
	}

	return nil
}

// loadScenario resolves a builtin name or a YAML file into a scenario.
func loadScenario(name, file string) (*scenario.Scenario, error) {
	if file != "" {
		return scenario.Load(file)
	}
	sc, ok := scenario.Builtin(name)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (builtin: %s)",
			name, strings.Join(scenario.Builtins(), ", "))
	}
	return sc, nil
}
