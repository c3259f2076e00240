package record_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/pkg/record"
	"github.com/weft-dev/weft/pkg/weft"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *record.Store {
	t.Helper()
	store, err := record.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// recordedRun drives a small graph under a recorder and returns the
// finished run id: one signal, one effect, five effective writes.
func recordedRun(t *testing.T, store *record.Store) (string, string) {
	t.Helper()
	rec, err := record.NewRecorder(store, "smoke")
	require.NoError(t, err)

	rt := weft.NewRuntime()
	rt.AddObserver(rec)

	sig := weft.CreateRWSignal(rt, 0, weft.SignalName[int]("hits"))
	weft.CreateEffect(rt, func() weft.Cleanup {
		_ = sig.Get()
		return nil
	})
	for i := 1; i <= 5; i++ {
		sig.Set(i)
	}
	sigID := sig.ID().String()
	rt.Dispose()

	require.NoError(t, rec.Close())
	return rec.RunID(), sigID
}

func TestStoreRecordsRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	runID, _ := recordedRun(t, store)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "smoke", runs[0].Name)
	assert.False(t, runs[0].StartedAt.IsZero())
	assert.False(t, runs[0].EndedAt.IsZero(), "Close finalizes the run")
	assert.Zero(t, runs[0].Dropped)
	assert.NotZero(t, runs[0].Events)

	events, err := store.Events(ctx, runID)
	require.NoError(t, err)
	require.Len(t, events, runs[0].Events)
	assert.Equal(t, "node_created", events[0].Kind)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq, "events come back in sequence order")
	}
}

func TestSummaryAggregates(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	runID, _ := recordedRun(t, store)

	sum, err := store.Summary(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Writes)
	assert.Equal(t, 6, sum.Evals, "creation run plus one per write")
	assert.Equal(t, 5, sum.Flushes)
	assert.Zero(t, sum.Errors)
	assert.NotZero(t, sum.Events)
}

func TestSummaryCountsFailures(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	rec, err := record.NewRecorder(store, "failing")
	require.NoError(t, err)

	rt := weft.NewRuntime(weft.WithLogger(discardLogger()))
	rt.AddObserver(rec)
	sig := weft.CreateRWSignal(rt, 0)
	weft.CreateEffect(rt, func() weft.Cleanup {
		if sig.Get() > 0 {
			panic("boom")
		}
		return nil
	})
	sig.Set(1)
	rt.Dispose()
	require.NoError(t, rec.Close())

	sum, err := store.Summary(ctx, rec.RunID())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 1, sum.Evals, "only the creation run succeeded")
}

func TestNodeTimeline(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	runID, sigID := recordedRun(t, store)

	timeline, err := store.NodeTimeline(ctx, runID, sigID)
	require.NoError(t, err)
	require.Len(t, timeline, 7, "created, five writes, disposed")
	assert.Equal(t, "node_created", timeline[0].Kind)
	assert.Equal(t, "node_disposed", timeline[len(timeline)-1].Kind)
	writes := 0
	for _, ev := range timeline {
		assert.Equal(t, sigID, ev.Node)
		if ev.Kind == "write" {
			writes++
		}
	}
	assert.Equal(t, 5, writes)
}

func TestStoreHoldsMultipleRuns(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	first, _ := recordedRun(t, store)
	second, _ := recordedRun(t, store)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}

func TestExportNDJSON(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	runID, _ := recordedRun(t, store)

	var buf bytes.Buffer
	require.NoError(t, store.ExportNDJSON(ctx, &buf, runID))

	events, err := store.Events(ctx, runID)
	require.NoError(t, err)

	var lines int
	var last uint64
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var ev record.StoredEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, len(events), lines)
}

func TestFSArchive(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	runID, _ := recordedRun(t, store)

	dir := t.TempDir()
	require.NoError(t, store.ArchiveRun(ctx, record.NewFSArchive(dir), runID))

	data, err := os.ReadFile(filepath.Join(dir, runID+".ndjson"))
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, store.ExportNDJSON(ctx, &want, runID))
	assert.Equal(t, want.Bytes(), data)
}

func TestRecorderArchiveTo(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	rec, err := record.NewRecorder(store, "archive")
	require.NoError(t, err)

	rt := weft.NewRuntime()
	rt.AddObserver(rec)
	sig := weft.CreateRWSignal(rt, 0)
	weft.CreateEffect(rt, func() weft.Cleanup {
		_ = sig.Get()
		return nil
	})
	sig.Set(1)
	rt.Dispose()
	require.NoError(t, rec.Close())

	dir := t.TempDir()
	require.NoError(t, rec.ArchiveTo(ctx, record.NewFSArchive(dir)))

	data, err := os.ReadFile(filepath.Join(dir, rec.RunID()+".ndjson"))
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, store.ExportNDJSON(ctx, &want, rec.RunID()))
	assert.Equal(t, want.Bytes(), data)
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	store := openStore(t)
	rec, err := record.NewRecorder(store, "idempotent")
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	assert.Zero(t, rec.Dropped())
}
