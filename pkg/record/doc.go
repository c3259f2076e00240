// Package record persists runtime event streams to SQLite for offline
// analysis, and archives finished runs to a filesystem or S3.
//
// A Recorder is a weft.Observer: it buffers events off the runtime's
// hot path and a background writer batches them into the store. One
// Store holds any number of runs.
//
// # Recording
//
//	store, err := record.Open("events.db")
//	if err != nil { ... }
//	defer store.Close()
//
//	rec, err := record.NewRecorder(store, "load-test")
//	if err != nil { ... }
//	rt.AddObserver(rec)
//
//	// ... drive the runtime ...
//
//	rec.Close()
//
// # Querying
//
//	runs, _ := store.Runs(ctx)
//	events, _ := store.Events(ctx, runs[0].ID)
//	summary, _ := store.Summary(ctx, runs[0].ID)
//
// # Archiving
//
//	arch := record.NewFSArchive("/var/lib/weft/archive")
//	store.ArchiveRun(ctx, arch, runs[0].ID)
package record
