package rtest

import (
	"sync"

	"github.com/weft-dev/weft/pkg/weft"
)

// Recorder is an Observer that retains every event it sees. It is safe
// for concurrent use; reads return copies so callers can inspect them
// while the runtime keeps emitting.
type Recorder struct {
	mu     sync.Mutex
	events []weft.Event
}

// Observe implements weft.Observer.
func (r *Recorder) Observe(ev weft.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns everything observed so far, in emission order.
func (r *Recorder) Events() []weft.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]weft.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of events observed so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// OfKind returns the observed events of one kind, in order.
func (r *Recorder) OfKind(kind weft.EventKind) []weft.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []weft.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// CountKind returns how many events of one kind were observed.
func (r *Recorder) CountKind(kind weft.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// EvalsOf returns how many successful evaluations the named node
// completed.
func (r *Recorder) EvalsOf(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == weft.EventEval && ev.Err == nil && ev.Name == name {
			n++
		}
	}
	return n
}

// WritesOf returns how many effective writes the named node received.
func (r *Recorder) WritesOf(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == weft.EventWrite && ev.Name == name {
			n++
		}
	}
	return n
}

// Errors returns the events that carry an error.
func (r *Recorder) Errors() []weft.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []weft.Event
	for _, ev := range r.events {
		if ev.Err != nil {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the most recent event, if any.
func (r *Recorder) Last() (weft.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return weft.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset discards everything observed so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
