// Package snapshot captures named runtime state as CBOR and restores
// it into a live runtime.
//
// Capture reads every named signal, memo, and stored box without
// subscribing, so taking a snapshot never adds edges to the graph.
// Restore writes captured values back by name: entries the target
// runtime does not know are skipped and reported, not fatal, which is
// what lets state move between different builds of the same app.
//
//	img, err := snapshot.Capture(rt)
//	data, err := img.Encode()
//
//	// elsewhere, typically after a restart
//	img, err := snapshot.DecodeImage(data)
//	report, err := snapshot.Restore(rt2, img)
package snapshot

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/weft-dev/weft/pkg/weft"
)

// FormatVersion is the image format this build writes.
const FormatVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Entry is one named value in an image.
type Entry struct {
	Name  string          `cbor:"name"`
	Kind  string          `cbor:"kind"`
	Value cbor.RawMessage `cbor:"value"`
}

// Image is a point-in-time capture of a runtime's named state.
type Image struct {
	Version int       `cbor:"v"`
	TakenAt time.Time `cbor:"taken_at"`
	Entries []Entry   `cbor:"entries"`
}

// Report says what Restore did with each entry.
type Report struct {
	Restored []string
	Skipped  []Skip
}

// Skip is one entry Restore could not apply, with the reason.
type Skip struct {
	Name   string
	Reason string
}

// Capture snapshots every named node. Stale memos settle first, so the
// image holds current values. An unencodable value fails the capture;
// nodes meant for snapshots hold data.
func Capture(rt *weft.Runtime) (*Image, error) {
	kinds := nodeKinds(rt)

	img := &Image{Version: FormatVersion, TakenAt: time.Now()}
	var encErr error
	rt.EachNamed(func(name string, id weft.NodeID, v any) bool {
		raw, err := cborEncMode.Marshal(v)
		if err != nil {
			encErr = fmt.Errorf("snapshot: encoding %q: %w", name, err)
			return false
		}
		img.Entries = append(img.Entries, Entry{
			Name:  name,
			Kind:  kinds[id.String()],
			Value: raw,
		})
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return img, nil
}

// Encode serializes the image.
func (img *Image) Encode() ([]byte, error) {
	data, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encoding image: %w", err)
	}
	return data, nil
}

// DecodeImage deserializes an image and checks its format version.
func DecodeImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal image: %w", err)
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported image version %d", img.Version)
	}
	return &img, nil
}

// Restore writes the image's signal and stored entries into rt by
// name, inside one batch so dependents settle once at the end. Memo
// entries are derived state and are skipped, as is every entry the
// runtime has no matching node for. Restore only fails outright when
// the runtime itself cannot take writes.
func Restore(rt *weft.Runtime, img *Image) (*Report, error) {
	types := nodeTypes(rt)
	report := &Report{}

	rt.StartBatch()
	defer rt.EndBatch()

	for _, entry := range img.Entries {
		if entry.Kind == "memo" {
			report.Skipped = append(report.Skipped, Skip{entry.Name, "derived value"})
			continue
		}
		typ, ok := types[entry.Name]
		if !ok {
			report.Skipped = append(report.Skipped, Skip{entry.Name, "no such node"})
			continue
		}
		value, err := decodeAs(entry.Value, typ)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{entry.Name, err.Error()})
			continue
		}
		if err := rt.WriteNamedAny(entry.Name, value); err != nil {
			if errors.Is(err, weft.ErrDisposed) {
				return nil, err
			}
			report.Skipped = append(report.Skipped, Skip{entry.Name, err.Error()})
			continue
		}
		report.Restored = append(report.Restored, entry.Name)
	}
	return report, nil
}

// decodeAs unmarshals raw into a fresh value of typ, so struct and
// slice entries come back as the type the node actually holds.
func decodeAs(raw cbor.RawMessage, typ reflect.Type) (any, error) {
	if typ == nil {
		var v any
		if err := cbor.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		return v, nil
	}
	ptr := reflect.New(typ)
	if err := cbor.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal as %s: %w", typ, err)
	}
	return ptr.Elem().Interface(), nil
}

// nodeKinds maps node ids to kind strings for the current graph.
func nodeKinds(rt *weft.Runtime) map[string]string {
	kinds := make(map[string]string)
	for _, n := range rt.Dump().Nodes {
		kinds[n.ID] = n.Kind
	}
	return kinds
}

// nodeTypes maps each named writable node to the dynamic type it
// holds. A node holding nil maps to a nil type, which decodes
// generically. First match wins on duplicate names, matching what
// writing by name does.
func nodeTypes(rt *weft.Runtime) map[string]reflect.Type {
	kinds := nodeKinds(rt)
	types := make(map[string]reflect.Type)
	rt.EachNamed(func(name string, id weft.NodeID, v any) bool {
		kind := kinds[id.String()]
		if kind != "signal" && kind != "stored" {
			return true
		}
		if _, ok := types[name]; !ok {
			types[name] = reflect.TypeOf(v)
		}
		return true
	})
	return types
}
