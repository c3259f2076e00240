package scenario

import (
	"fmt"
	"time"

	"github.com/weft-dev/weft/pkg/weft"
)

// Runner is a scenario wired into a live runtime, ready to drive.
type Runner struct {
	rt   *weft.Runtime
	sc   *Scenario
	root weft.WriteSignal[int]

	sinkRuns  int
	lastValue int
}

// Result reports what one Run did.
type Result struct {
	Writes    int
	SinkRuns  int // sink effect executions during the run
	LastValue int // sink value after the final write
	Elapsed   time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("%d writes, %d sink runs, last value %d, %s",
		r.Writes, r.SinkRuns, r.LastValue, r.Elapsed)
}

// Build constructs the scenario's graph in rt: a root signal, the
// shape's memo layers, and a sink effect reading the final layer.
func (sc *Scenario) Build(rt *weft.Runtime) (*Runner, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{rt: rt, sc: sc}

	read, write := weft.CreateSignal(rt, 0, weft.SignalName[int]("root"))
	r.root = write

	var memoOpts []weft.MemoOption[int]
	if sc.Eager {
		memoOpts = append(memoOpts, weft.Eager[int]())
	}
	memo := func(name string, compute func() int) weft.Memo[int] {
		opts := append([]weft.MemoOption[int]{weft.MemoName[int](name)}, memoOpts...)
		return weft.CreateMemo(rt, compute, opts...)
	}

	var sink func() int
	switch sc.Shape {
	case ShapeChain:
		prev := memo("m1", func() int { return read.Get() + 1 })
		for i := 2; i <= sc.Depth; i++ {
			inner := prev
			prev = memo(fmt.Sprintf("m%d", i), func() int { return inner.Get() + 1 })
		}
		last := prev
		sink = last.Get

	case ShapeFanout, ShapeDiamond:
		branches := make([]weft.Memo[int], sc.Width)
		for i := range branches {
			offset := i
			branches[i] = memo(fmt.Sprintf("b%d", i), func() int { return read.Get() + offset })
		}
		join := func() int {
			total := 0
			for _, b := range branches {
				total += b.Get()
			}
			return total
		}
		if sc.Shape == ShapeDiamond {
			j := memo("join", join)
			sink = j.Get
		} else {
			sink = join
		}

	case ShapeGrid:
		layer := make([]weft.Memo[int], sc.Width)
		for i := range layer {
			offset := i
			layer[i] = memo(fmt.Sprintf("g1_%d", i), func() int { return read.Get() + offset })
		}
		for d := 2; d <= sc.Depth; d++ {
			next := make([]weft.Memo[int], sc.Width)
			for i := range next {
				a := layer[i]
				b := layer[(i+1)%sc.Width]
				next[i] = memo(fmt.Sprintf("g%d_%d", d, i), func() int { return a.Get() + b.Get() })
			}
			layer = next
		}
		last := layer
		sink = func() int {
			total := 0
			for _, m := range last {
				total += m.Get()
			}
			return total
		}

	default:
		return nil, fmt.Errorf("unknown shape %q", sc.Shape)
	}

	weft.CreateEffect(rt, func() weft.Cleanup {
		r.lastValue = sink()
		r.sinkRuns++
		return nil
	}, weft.EffectName("sink"))
	return r, nil
}

// Run drives the write plan and reports what happened. Run can be
// called again to drive another round on the same graph.
func (r *Runner) Run() Result {
	start := time.Now()
	startRuns := r.sinkRuns

	if r.sc.Batch > 1 {
		for base := 0; base < r.sc.Writes; base += r.sc.Batch {
			end := base + r.sc.Batch
			if end > r.sc.Writes {
				end = r.sc.Writes
			}
			r.rt.Batch(func() {
				for i := base + 1; i <= end; i++ {
					r.root.Set(i)
				}
			})
		}
	} else {
		for i := 1; i <= r.sc.Writes; i++ {
			r.root.Set(i)
		}
	}

	return Result{
		Writes:    r.sc.Writes,
		SinkRuns:  r.sinkRuns - startRuns,
		LastValue: r.lastValue,
		Elapsed:   time.Since(start),
	}
}
