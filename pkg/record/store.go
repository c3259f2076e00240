package record

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// StoredEvent is one persisted runtime event. It round-trips through
// the store and through NDJSON exports.
type StoredEvent struct {
	Seq      uint64        `json:"seq"`
	Time     time.Time     `json:"time"`
	Kind     string        `json:"kind"`
	Node     string        `json:"node,omitempty"`
	NodeKind string        `json:"node_kind,omitempty"`
	Scope    string        `json:"scope,omitempty"`
	Name     string        `json:"name,omitempty"`
	Wave     int           `json:"wave,omitempty"`
	Dur      time.Duration `json:"dur_ns,omitempty"`
	Evals    int           `json:"evals,omitempty"`
	Err      string        `json:"err,omitempty"`
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID        string
	Name      string
	StartedAt time.Time
	EndedAt   time.Time // zero while the run is still recording
	Dropped   uint64    // events lost to recorder backpressure
	Events    int
}

// RunSummary aggregates a run's events.
type RunSummary struct {
	Events   int
	Evals    int // successful evaluations
	Writes   int
	Flushes  int
	Errors   int
	EvalTime time.Duration
}

// Store is a SQLite-backed event archive. A single writer owns the
// connection; readers share it. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}
	// modernc's driver serializes per connection; one connection keeps
	// writes ordered and sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring event store: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating event store schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) beginRun(id, name string, startedAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, name, started_at) VALUES (?, ?, ?)",
		id, name, startedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	return nil
}

func (s *Store) endRun(id string, endedAt time.Time, dropped uint64) error {
	_, err := s.db.Exec(
		"UPDATE runs SET ended_at = ?, dropped = ? WHERE id = ?",
		endedAt.UnixNano(), dropped, id,
	)
	if err != nil {
		return fmt.Errorf("ending run: %w", err)
	}
	return nil
}

func (s *Store) insertEvents(runID string, batch []StoredEvent) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("inserting events: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO events
		(run_id, seq, at, kind, node, node_kind, scope, name, wave, dur_ns, evals, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		_, err := stmt.Exec(
			runID, ev.Seq, ev.Time.UnixNano(), ev.Kind,
			nullable(ev.Node), nullable(ev.NodeKind), nullable(ev.Scope), nullable(ev.Name),
			ev.Wave, int64(ev.Dur), ev.Evals, nullable(ev.Err),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting event %d: %w", ev.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inserting events: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Runs lists recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
			r.id, r.name, r.started_at, r.ended_at, r.dropped,
			(SELECT COUNT(*) FROM events e WHERE e.run_id = r.id)
		FROM runs r ORDER BY r.started_at, r.id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&info.ID, &info.Name, &started, &ended, &info.Dropped, &info.Events); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		info.StartedAt = time.Unix(0, started)
		if ended.Valid {
			info.EndedAt = time.Unix(0, ended.Int64)
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

const eventColumns = "seq, at, kind, node, node_kind, scope, name, wave, dur_ns, evals, err"

func scanEvent(rows *sql.Rows) (StoredEvent, error) {
	var ev StoredEvent
	var at, dur int64
	var node, nodeKind, scope, name, evErr sql.NullString
	err := rows.Scan(&ev.Seq, &at, &ev.Kind, &node, &nodeKind, &scope, &name, &ev.Wave, &dur, &ev.Evals, &evErr)
	if err != nil {
		return ev, fmt.Errorf("scanning event: %w", err)
	}
	ev.Time = time.Unix(0, at)
	ev.Dur = time.Duration(dur)
	ev.Node = node.String
	ev.NodeKind = nodeKind.String
	ev.Scope = scope.String
	ev.Name = name.String
	ev.Err = evErr.String
	return ev, nil
}

// Events returns a run's events in sequence order.
func (s *Store) Events(ctx context.Context, runID string) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// NodeTimeline returns every event touching one node, in sequence
// order. The node is addressed by its dump id, for example "n0v1".
func (s *Store) NodeTimeline(ctx context.Context, runID, node string) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE run_id = ? AND node = ? ORDER BY seq", runID, node)
	if err != nil {
		return nil, fmt.Errorf("loading node timeline: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]StoredEvent, error) {
	var events []StoredEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Summary aggregates a run's events.
func (s *Store) Summary(ctx context.Context, runID string) (RunSummary, error) {
	var sum RunSummary
	var evalTime int64
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'eval' AND err IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'write' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'flush' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN err IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'eval' THEN dur_ns ELSE 0 END), 0)
		FROM events WHERE run_id = ?`, runID).Scan(
		&sum.Events, &sum.Evals, &sum.Writes, &sum.Flushes, &sum.Errors, &evalTime)
	if err != nil {
		return sum, fmt.Errorf("summarizing run: %w", err)
	}
	sum.EvalTime = time.Duration(evalTime)
	return sum, nil
}

// ExportNDJSON streams a run's events to w, one JSON object per line.
func (s *Store) ExportNDJSON(ctx context.Context, w io.Writer, runID string) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return fmt.Errorf("exporting run: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encoding event %d: %w", ev.Seq, err)
		}
	}
	return rows.Err()
}
