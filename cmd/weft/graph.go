package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/weft-dev/weft/pkg/devtools"
	"github.com/weft-dev/weft/pkg/weft"
)

func graphCmd() *cobra.Command {
	var (
		file   string
		output string
		run    bool
	)

	cmd := &cobra.Command{
		Use:   "graph [scenario]",
		Short: "Export a scenario's dependency graph as DOT",
		Long: `Build a scenario's dependency graph and print it in Graphviz DOT
format. Pipe the output through dot to render it:

  weft graph diamond | dot -Tsvg -o graph.svg

With --run the write workload executes first, so node versions and
values show a settled graph instead of a freshly built one.

Examples:
  weft graph chain
  weft graph grid --run --output=grid.dot
  weft graph --file=scenario.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "chain"
			if len(args) > 0 {
				name = args[0]
			}
			return runGraph(name, file, output, run)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Scenario YAML file (overrides the builtin name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write DOT to this file instead of stdout")
	cmd.Flags().BoolVar(&run, "run", false, "Run the write workload before dumping")

	return cmd
}

func runGraph(name, file, output string, run bool) error {
	sc, err := loadScenario(name, file)
	if err != nil {
		return err
	}

	rt := weft.NewRuntime()
	defer rt.Dispose()

	runner, err := sc.Build(rt)
	if err != nil {
		return err
	}
	if run {
		runner.Run()
	}

	dump := rt.Dump()
	dot := devtools.DOT(dump)
	if output == "" {
		_, err := os.Stdout.Write(dot)
		return err
	}
	if err := os.WriteFile(output, dot, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	success("wrote %s (%d nodes, %d scopes)", output, len(dump.Nodes), len(dump.Scopes))
	return nil
}
