// Package scenario describes reactive workloads as data: a graph shape
// plus a write plan. The bench and graph commands build runtimes from
// these descriptions.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Graph shapes a scenario can build.
const (
	ShapeChain   = "chain"
	ShapeFanout  = "fanout"
	ShapeDiamond = "diamond"
	ShapeGrid    = "grid"
)

// Scenario describes one benchmark workload.
type Scenario struct {
	// Name identifies the scenario in output and recordings.
	Name string `yaml:"name"`

	// Description is free text for humans.
	Description string `yaml:"description,omitempty"`

	// Shape picks the graph: chain, fanout, diamond, or grid.
	Shape string `yaml:"shape"`

	// Depth is the number of derived layers. Chains and grids require
	// it; fanout and diamond ignore it.
	Depth int `yaml:"depth,omitempty"`

	// Width is the number of memos per layer. Fanout, diamond, and
	// grid require it; chains ignore it.
	Width int `yaml:"width,omitempty"`

	// Eager switches every memo from pull to push evaluation.
	Eager bool `yaml:"eager,omitempty"`

	// Writes is how many root writes the run drives.
	Writes int `yaml:"writes"`

	// Batch groups writes: N writes per batch flush once together.
	// Zero or one means every write propagates immediately.
	Batch int `yaml:"batch,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates scenario YAML. Unknown fields are
// rejected, so typos fail loudly instead of silently defaulting.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks required fields and shape-specific dimensions.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch sc.Shape {
	case ShapeChain:
		if sc.Depth < 1 {
			return fmt.Errorf("shape %q requires depth >= 1", sc.Shape)
		}
	case ShapeFanout, ShapeDiamond:
		if sc.Width < 1 {
			return fmt.Errorf("shape %q requires width >= 1", sc.Shape)
		}
	case ShapeGrid:
		if sc.Depth < 1 || sc.Width < 1 {
			return fmt.Errorf("shape %q requires depth >= 1 and width >= 1", sc.Shape)
		}
	case "":
		return fmt.Errorf("shape is required")
	default:
		return fmt.Errorf("unknown shape %q (valid: chain, fanout, diamond, grid)", sc.Shape)
	}
	if sc.Writes < 1 {
		return fmt.Errorf("writes must be >= 1")
	}
	if sc.Batch < 0 {
		return fmt.Errorf("batch must be >= 0")
	}
	return nil
}

// Builtin returns a named preset, for running without a scenario file.
func Builtin(name string) (*Scenario, bool) {
	switch name {
	case ShapeChain:
		return &Scenario{Name: "chain", Shape: ShapeChain, Depth: 32, Writes: 1000}, true
	case ShapeFanout:
		return &Scenario{Name: "fanout", Shape: ShapeFanout, Width: 64, Writes: 1000}, true
	case ShapeDiamond:
		return &Scenario{Name: "diamond", Shape: ShapeDiamond, Width: 16, Writes: 1000}, true
	case ShapeGrid:
		return &Scenario{Name: "grid", Shape: ShapeGrid, Depth: 8, Width: 8, Writes: 500}, true
	default:
		return nil, false
	}
}

// Builtins lists the preset names.
func Builtins() []string {
	return []string{ShapeChain, ShapeFanout, ShapeDiamond, ShapeGrid}
}
