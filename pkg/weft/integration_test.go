package weft

import (
	"fmt"
	"strings"
	"testing"
)

type palette struct {
	Accent string
}

// TestDashboardScenario drives a small application graph end to end:
// task and filter signals feed derived memos, a render effect projects
// the visible rows, a widget owns a child scope with its own effect,
// and the palette travels through context.
func TestDashboardScenario(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	if err := Provide(rt, palette{Accent: "green"}); err != nil {
		t.Fatalf("provide palette: %v", err)
	}

	tasks, setTasks := CreateSignal(rt, []string{"write", "review"}, SignalName[[]string]("tasks"))
	filter, setFilter := CreateSignal(rt, "", SignalName[string]("filter"))

	visible := CreateMemo(rt, func() []string {
		f := filter.Get()
		var out []string
		for _, task := range tasks.Get() {
			if strings.Contains(task, f) {
				out = append(out, task)
			}
		}
		return out
	}, MemoName[[]string]("visible"))
	count := CreateMemo(rt, func() int { return len(visible.Get()) }, MemoName[int]("count"))

	var frames []string
	CreateEffect(rt, func() Cleanup {
		th, _ := Use[palette](rt)
		frames = append(frames, fmt.Sprintf("%s|%d|%s", th.Accent, count.Get(), strings.Join(visible.Get(), ",")))
		return nil
	})

	if len(frames) != 1 {
		t.Fatalf("expected one initial render, got %d", len(frames))
	}
	if frames[0] != "green|2|write,review" {
		t.Errorf("unexpected first frame: %q", frames[0])
	}

	// Two writes inside a batch coalesce into one render.
	rt.Batch(func() {
		setTasks.Set([]string{"write", "review", "release"})
		setFilter.Set("re")
	})
	if len(frames) != 2 {
		t.Fatalf("expected one render after batch, got %d", len(frames)-1)
	}
	if frames[1] != "green|2|review,release" {
		t.Errorf("unexpected frame after batch: %q", frames[1])
	}

	// Rewriting the same filter value renders nothing.
	setFilter.Set("re")
	if len(frames) != 2 {
		t.Errorf("equal write re-rendered: %d frames", len(frames))
	}

	// A widget in its own scope shadows the palette and watches count.
	widget, err := rt.CreateScope(0)
	if err != nil {
		t.Fatalf("create widget scope: %v", err)
	}
	var widgetFrames []string
	widgetCleanups := 0
	rt.WithScope(widget, func() {
		if err := Provide(rt, palette{Accent: "red"}); err != nil {
			t.Fatalf("provide widget palette: %v", err)
		}
		CreateEffect(rt, func() Cleanup {
			th, _ := Use[palette](rt)
			widgetFrames = append(widgetFrames, fmt.Sprintf("%s:%d", th.Accent, count.Get()))
			return func() { widgetCleanups++ }
		})
	})
	if len(widgetFrames) != 1 || widgetFrames[0] != "red:2" {
		t.Fatalf("expected widget to render with its own palette, got %v", widgetFrames)
	}

	// A write from the root scope re-runs both effects; the widget still
	// resolves its own palette.
	setTasks.Set([]string{"ship"})
	if len(frames) != 3 || frames[2] != "green|0|" {
		t.Errorf("unexpected frames after task rewrite: %v", frames)
	}
	if len(widgetFrames) != 2 || widgetFrames[1] != "red:0" {
		t.Errorf("unexpected widget frames: %v", widgetFrames)
	}
	if widgetCleanups != 1 {
		t.Errorf("expected cleanup before the widget re-run, got %d", widgetCleanups)
	}

	// Disposing the widget runs its last cleanup and detaches it.
	rt.DisposeScope(widget)
	if widgetCleanups != 2 {
		t.Errorf("expected disposal to run the widget cleanup, got %d", widgetCleanups)
	}

	setFilter.Set("")
	if len(frames) != 4 || frames[3] != "green|1|ship" {
		t.Errorf("unexpected frames after clearing filter: %v", frames)
	}
	if len(widgetFrames) != 2 {
		t.Errorf("disposed widget rendered again: %v", widgetFrames)
	}
}

// TestNestedWidgetOwnership creates nodes from inside a running effect
// and checks they land in the effect's scope, not wherever the
// triggering write came from.
func TestNestedWidgetOwnership(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	widget, err := rt.CreateScope(0)
	if err != nil {
		t.Fatalf("create scope: %v", err)
	}

	open, setOpen := CreateSignal(rt, false)
	innerRuns := 0
	rt.WithScope(widget, func() {
		CreateEffect(rt, func() Cleanup {
			if open.Get() {
				CreateEffect(rt, func() Cleanup {
					innerRuns++
					return nil
				})
			}
			return nil
		})
	})

	// The write happens at root scope; the inner effect must still be
	// owned by the widget scope.
	setOpen.Set(true)
	if innerRuns != 1 {
		t.Fatalf("expected inner effect to run once, got %d", innerRuns)
	}

	rt.DisposeScope(widget)
	setOpen.Set(false)
	setOpen.Set(true)
	if innerRuns != 1 {
		t.Errorf("inner effect survived widget disposal: %d runs", innerRuns)
	}
}
