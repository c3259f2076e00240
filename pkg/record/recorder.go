package record

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/weft-dev/weft/pkg/weft"
)

const (
	defaultRecorderBuffer = 4096
	defaultFlushInterval  = 250 * time.Millisecond
	insertBatchSize       = 256
)

// recorderConfig collects Recorder options.
type recorderConfig struct {
	buffer        int
	flushInterval time.Duration
	logger        *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

// WithBuffer sets how many events may sit between the runtime and the
// background writer before new ones are dropped.
func WithBuffer(n int) RecorderOption {
	return func(c *recorderConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithFlushInterval sets how often buffered events are written out even
// when the batch is not full.
func WithFlushInterval(d time.Duration) RecorderOption {
	return func(c *recorderConfig) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(c *recorderConfig) { c.logger = l }
}

// Recorder persists one run of runtime events. It implements
// weft.Observer: Observe never blocks, events are handed to a
// background writer and dropped (counted) when the buffer is full.
//
// A Recorder cannot be detached from a runtime; after Close it goes
// inert and further events are discarded.
type Recorder struct {
	store *Store
	runID string

	ch   chan StoredEvent
	quit chan struct{}
	done chan struct{}

	closed   atomic.Bool
	dropped  atomic.Uint64
	flushInt time.Duration
	logger   *slog.Logger

	closeErr error
}

// NewRecorder opens a new run in store and starts the background
// writer. The name is display-only.
func NewRecorder(store *Store, name string, opts ...RecorderOption) (*Recorder, error) {
	cfg := recorderConfig{
		buffer:        defaultRecorderBuffer,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Recorder{
		store:    store,
		runID:    uuid.NewString(),
		ch:       make(chan StoredEvent, cfg.buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		flushInt: cfg.flushInterval,
		logger:   cfg.logger.With("component", "record", "run", name),
	}
	if err := store.beginRun(r.runID, name, time.Now()); err != nil {
		return nil, err
	}
	go r.writeLoop()
	return r, nil
}

// RunID returns the id the run is stored under.
func (r *Recorder) RunID() string { return r.runID }

// Dropped returns how many events were lost to backpressure so far.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// ArchiveTo exports this run through a. Call it after Close; archiving
// a run still being written would miss its tail.
func (r *Recorder) ArchiveTo(ctx context.Context, a Archive) error {
	return r.store.ArchiveRun(ctx, a, r.runID)
}

// Observe implements weft.Observer. It is called under the runtime
// lock, so it only converts and enqueues.
func (r *Recorder) Observe(ev weft.Event) {
	if r.closed.Load() {
		return
	}
	rec := StoredEvent{
		Seq:   ev.Seq,
		Time:  ev.Time,
		Kind:  ev.Kind.String(),
		Name:  ev.Name,
		Wave:  ev.Wave,
		Dur:   ev.Dur,
		Evals: ev.Evals,
	}
	if !ev.Node.IsZero() {
		rec.Node = ev.Node.String()
		rec.NodeKind = ev.NodeKind.String()
	}
	if !ev.Scope.IsZero() {
		rec.Scope = ev.Scope.String()
	}
	if ev.Err != nil {
		rec.Err = ev.Err.Error()
	}
	select {
	case r.ch <- rec:
	default:
		r.dropped.Add(1)
	}
}

// Close drains the buffer, finalizes the run row, and stops the writer.
// Subsequent events are discarded. Safe to call more than once.
func (r *Recorder) Close() error {
	if r.closed.Swap(true) {
		<-r.done
		return r.closeErr
	}
	close(r.quit)
	<-r.done
	return r.closeErr
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInt)
	defer ticker.Stop()

	batch := make([]StoredEvent, 0, insertBatchSize)
	flush := func() {
		if err := r.store.insertEvents(r.runID, batch); err != nil {
			r.logger.Error("event batch write failed", "events", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-r.ch:
			batch = append(batch, rec)
			if len(batch) >= insertBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.quit:
			for {
				select {
				case rec := <-r.ch:
					batch = append(batch, rec)
					if len(batch) >= insertBatchSize {
						flush()
					}
				default:
					flush()
					r.closeErr = r.store.endRun(r.runID, time.Now(), r.dropped.Load())
					return
				}
			}
		}
	}
}
