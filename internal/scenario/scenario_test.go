package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/scenario"
	"github.com/weft-dev/weft/pkg/rtest"
	"github.com/weft-dev/weft/pkg/weft"
)

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: deep-chain
description: a long memo chain
shape: chain
depth: 16
writes: 100
batch: 10
`), 0o644))

	sc, err := scenario.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deep-chain", sc.Name)
	assert.Equal(t, scenario.ShapeChain, sc.Shape)
	assert.Equal(t, 16, sc.Depth)
	assert.Equal(t, 100, sc.Writes)
	assert.Equal(t, 10, sc.Batch)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := scenario.Parse([]byte(`
name: typo
shap: chain
depth: 4
writes: 10
`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		sc      scenario.Scenario
		wantErr string
	}{
		{"missing name", scenario.Scenario{Shape: "chain", Depth: 1, Writes: 1}, "name is required"},
		{"missing shape", scenario.Scenario{Name: "x", Writes: 1}, "shape is required"},
		{"unknown shape", scenario.Scenario{Name: "x", Shape: "ring", Writes: 1}, `unknown shape "ring"`},
		{"chain needs depth", scenario.Scenario{Name: "x", Shape: "chain", Writes: 1}, "requires depth"},
		{"fanout needs width", scenario.Scenario{Name: "x", Shape: "fanout", Writes: 1}, "requires width"},
		{"grid needs both", scenario.Scenario{Name: "x", Shape: "grid", Depth: 2, Writes: 1}, "requires depth >= 1 and width >= 1"},
		{"writes required", scenario.Scenario{Name: "x", Shape: "chain", Depth: 1}, "writes must be >= 1"},
		{"negative batch", scenario.Scenario{Name: "x", Shape: "chain", Depth: 1, Writes: 1, Batch: -1}, "batch must be >= 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBuiltinsAreValid(t *testing.T) {
	for _, name := range scenario.Builtins() {
		sc, ok := scenario.Builtin(name)
		require.True(t, ok, name)
		assert.NoError(t, sc.Validate(), name)
	}
	_, ok := scenario.Builtin("ring")
	assert.False(t, ok)
}

func TestChainRun(t *testing.T) {
	rt, _ := rtest.New(t)
	sc := &scenario.Scenario{Name: "chain", Shape: scenario.ShapeChain, Depth: 3, Writes: 5}
	r, err := sc.Build(rt)
	require.NoError(t, err)

	res := r.Run()
	assert.Equal(t, 5, res.Writes)
	assert.Equal(t, 5, res.SinkRuns, "every unbatched write reaches the sink")
	assert.Equal(t, 8, res.LastValue, "root 5 plus one per chain layer")
}

func TestBatchedRunCoalesces(t *testing.T) {
	rt, rec := rtest.New(t)
	sc := &scenario.Scenario{Name: "chain", Shape: scenario.ShapeChain, Depth: 2, Writes: 6, Batch: 3}
	r, err := sc.Build(rt)
	require.NoError(t, err)

	res := r.Run()
	assert.Equal(t, 2, res.SinkRuns, "three writes per batch, one flush per batch")
	assert.Equal(t, 8, res.LastValue)
	rtest.ExpectKindCount(t, rec, weft.EventFlush, 2)
}

func TestDiamondRun(t *testing.T) {
	rt, _ := rtest.New(t)
	sc := &scenario.Scenario{Name: "diamond", Shape: scenario.ShapeDiamond, Width: 2, Writes: 5}
	r, err := sc.Build(rt)
	require.NoError(t, err)

	res := r.Run()
	assert.Equal(t, 5, res.SinkRuns)
	assert.Equal(t, 11, res.LastValue, "two branches of root+offset summed")
}

func TestGridRunSmoke(t *testing.T) {
	rt, rec := rtest.New(t)
	sc := &scenario.Scenario{Name: "grid", Shape: scenario.ShapeGrid, Depth: 4, Width: 4, Writes: 10, Eager: true}
	r, err := sc.Build(rt)
	require.NoError(t, err)

	res := r.Run()
	assert.Equal(t, 10, res.SinkRuns)
	assert.NotZero(t, res.LastValue)
	rtest.ExpectNoErrors(t, rec)
}

func TestRunnerCanRunTwice(t *testing.T) {
	rt, _ := rtest.New(t)
	sc := &scenario.Scenario{Name: "fanout", Shape: scenario.ShapeFanout, Width: 3, Writes: 4}
	r, err := sc.Build(rt)
	require.NoError(t, err)

	first := r.Run()
	second := r.Run()
	assert.Equal(t, first.LastValue, second.LastValue, "same write plan lands on the same value")
	assert.Equal(t, 4, second.SinkRuns)
}
