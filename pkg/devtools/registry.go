package devtools

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weft-dev/weft/pkg/weft"
)

const (
	defaultEventBuffer = 256
	subscriberBuffer   = 64
)

// EventRecord is the wire form of one runtime event. Durations are
// nanoseconds; empty fields are omitted.
type EventRecord struct {
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

func recordOf(ev weft.Event) EventRecord {
	rec := EventRecord{
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
	return rec
}

// RuntimeInfo describes one registered runtime.
type RuntimeInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
	Events       uint64    `json:"events"`
}

type subscriber struct {
	ch  chan EventRecord
	reg *registration
}

type registration struct {
	id           string
	name         string
	rt           *weft.Runtime
	registeredAt time.Time

	ring  []EventRecord
	start int
	total uint64

	subs map[*subscriber]struct{}

	active bool
}

// record appends to the ring, overwriting the oldest entry once full.
// Caller holds the registry mutex.
func (reg *registration) record(limit int, rec EventRecord) {
	reg.total++
	if len(reg.ring) < limit {
		reg.ring = append(reg.ring, rec)
		return
	}
	reg.ring[reg.start] = rec
	reg.start = (reg.start + 1) % limit
}

// recent returns the ring oldest-first. Caller holds the registry mutex.
func (reg *registration) recent() []EventRecord {
	out := make([]EventRecord, 0, len(reg.ring))
	out = append(out, reg.ring[reg.start:]...)
	out = append(out, reg.ring[:reg.start]...)
	return out
}

// publish hands rec to every subscriber. A subscriber whose buffer is
// full is dropped; the runtime never waits on a slow reader. Caller
// holds the registry mutex.
func (reg *registration) publish(rec EventRecord) {
	for sub := range reg.subs {
		select {
		case sub.ch <- rec:
		default:
			delete(reg.subs, sub)
			close(sub.ch)
		}
	}
}

// Registry tracks runtimes under stable ids and buffers their events.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	limit    int
	runtimes map[string]*registration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEventBuffer sets how many recent events are retained per runtime.
func WithEventBuffer(n int) RegistryOption {
	return func(g *Registry) {
		if n > 0 {
			g.limit = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	g := &Registry{
		limit:    defaultEventBuffer,
		runtimes: make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register attaches the registry to rt as an observer and returns the
// id the runtime is served under. The name is display-only and need
// not be unique.
func (g *Registry) Register(name string, rt *weft.Runtime) string {
	reg := &registration{
		id:           uuid.NewString(),
		name:         name,
		rt:           rt,
		registeredAt: time.Now(),
		subs:         make(map[*subscriber]struct{}),
		active:       true,
	}
	g.mu.Lock()
	g.runtimes[reg.id] = reg
	g.mu.Unlock()

	// Delivered under the runtime lock: convert, stash, fan out, return.
	rt.AddObserver(weft.ObserverFunc(func(ev weft.Event) {
		rec := recordOf(ev)
		g.mu.Lock()
		defer g.mu.Unlock()
		if !reg.active {
			return
		}
		reg.record(g.limit, rec)
		reg.publish(rec)
	}))
	return reg.id
}

// Unregister stops tracking the runtime and closes its subscribers.
// The runtime itself is untouched. Unknown ids are a no-op.
func (g *Registry) Unregister(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reg, ok := g.runtimes[id]
	if !ok {
		return
	}
	reg.active = false
	for sub := range reg.subs {
		delete(reg.subs, sub)
		close(sub.ch)
	}
	delete(g.runtimes, id)
}

// Runtimes lists registered runtimes, oldest first.
func (g *Registry) Runtimes() []RuntimeInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RuntimeInfo, 0, len(g.runtimes))
	for _, reg := range g.runtimes {
		out = append(out, RuntimeInfo{
			ID:           reg.id,
			Name:         reg.name,
			RegisteredAt: reg.registeredAt,
			Events:       reg.total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Runtime resolves an id to its runtime.
func (g *Registry) Runtime(id string) (*weft.Runtime, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reg, ok := g.runtimes[id]
	if !ok {
		return nil, false
	}
	return reg.rt, true
}

// Recent returns the buffered events for a runtime, oldest first.
func (g *Registry) Recent(id string) ([]EventRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reg, ok := g.runtimes[id]
	if !ok {
		return nil, false
	}
	return reg.recent(), true
}

// subscribe opens a live event feed for a runtime and returns the ring
// contents at the moment of subscription, so a consumer can replay then
// follow without a gap.
func (g *Registry) subscribe(id string) (*subscriber, []EventRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reg, ok := g.runtimes[id]
	if !ok {
		return nil, nil, false
	}
	sub := &subscriber{ch: make(chan EventRecord, subscriberBuffer), reg: reg}
	reg.subs[sub] = struct{}{}
	return sub, reg.recent(), true
}

// unsubscribe detaches sub. Safe to call after the subscriber was
// already dropped for falling behind.
func (g *Registry) unsubscribe(sub *subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := sub.reg.subs[sub]; ok {
		delete(sub.reg.subs, sub)
		close(sub.ch)
	}
}
