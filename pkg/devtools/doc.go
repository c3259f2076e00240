// Package devtools serves a live inspector for weft runtimes over HTTP.
//
// A Registry observes one or more runtimes, keeps a bounded ring of
// their most recent events, and fans new events out to connected
// websocket subscribers. Server mounts the registry behind a small
// JSON API.
//
// # Quick Start
//
//	reg := devtools.NewRegistry()
//	id := reg.Register("checkout", rt)
//
//	srv := devtools.New(&devtools.Config{Registry: reg})
//	http.ListenAndServe(":6060", srv.Handler())
//
// # Endpoints
//
//	GET /api/runtimes                   registered runtimes
//	GET /api/runtimes/{id}/graph        dependency graph as JSON
//	GET /api/runtimes/{id}/graph.dot    dependency graph as Graphviz DOT
//	GET /api/runtimes/{id}/events/recent buffered events as JSON
//	GET /api/runtimes/{id}/events       websocket event stream
//
// The event stream replays the buffered ring on connect, then delivers
// events as they happen. A subscriber that cannot keep up is dropped
// rather than stalling the runtime.
package devtools
