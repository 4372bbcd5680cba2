package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/model"
)

var (
	// ErrObjectExists indicates the id is stored or was used by a removed
	// object.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNil indicates a nil object was passed to the registry.
	ErrObjectNil = errors.New("object is nil")
)

// ObjectCountRecorder receives the object count after every mutation.
type ObjectCountRecorder interface {
	SetObjectCount(n int)
}

type objectEntry struct {
	obj *model.SpaceObject
	seq uint64
}

// ObjectRegistry is an in-memory, thread-safe store for every SpaceObject
// in the play field.
type ObjectRegistry struct {
	mu sync.RWMutex

	objects map[string]objectEntry
	seq     uint64
	// retired holds removed ids; an id is never reissued.
	retired map[string]struct{}

	// list caches All(); dirty forces a rebuild on the next read.
	list  []*model.SpaceObject
	dirty bool

	metrics ObjectCountRecorder
}

// NewObjectRegistry constructs an empty registry.
func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{
		objects: make(map[string]objectEntry),
		retired: make(map[string]struct{}),
		dirty:   true,
	}
}

// SetMetricsRecorder attaches an optional count recorder.
func (r *ObjectRegistry) SetMetricsRecorder(m ObjectCountRecorder) {
	r.mu.Lock()
	r.metrics = m
	n := len(r.objects)
	r.mu.Unlock()
	if m != nil {
		m.SetObjectCount(n)
	}
}

// Add stores obj, assigning an id when it has none, and returns the id.
func (r *ObjectRegistry) Add(obj *model.SpaceObject) (string, error) {
	if obj == nil {
		return "", ErrObjectNil
	}
	r.mu.Lock()
	if obj.ID == "" {
		obj.ID = r.nextIDLocked()
	} else if r.takenLocked(obj.ID) {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrObjectExists, obj.ID)
	}
	r.seq++
	// store pointer so physics can update in place
	r.objects[obj.ID] = objectEntry{obj: obj, seq: r.seq}
	r.dirty = true
	n, m := len(r.objects), r.metrics
	r.mu.Unlock()

	if m != nil {
		m.SetObjectCount(n)
	}
	return obj.ID, nil
}

func (r *ObjectRegistry) nextIDLocked() string {
	for {
		r.seq++
		id := fmt.Sprintf("obj-%d", r.seq)
		if !r.takenLocked(id) {
			return id
		}
	}
}

func (r *ObjectRegistry) takenLocked(id string) bool {
	if _, ok := r.objects[id]; ok {
		return true
	}
	_, ok := r.retired[id]
	return ok
}

// Get returns the object with the given id, or nil if not found.
func (r *ObjectRegistry) Get(id string) *model.SpaceObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects[id].obj
}

// Remove deletes the object and reports whether it existed.
func (r *ObjectRegistry) Remove(id string) bool {
	r.mu.Lock()
	if _, ok := r.objects[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.objects, id)
	r.retired[id] = struct{}{}
	r.dirty = true
	n, m := len(r.objects), r.metrics
	r.mu.Unlock()

	if m != nil {
		m.SetObjectCount(n)
	}
	return true
}

// Len returns the number of stored objects.
func (r *ObjectRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// All returns every object in insertion order. The slice is cached until
// the next mutation and callers MUST treat it as read-only.
func (r *ObjectRegistry) All() []*model.SpaceObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return r.list
	}

	entries := make([]objectEntry, 0, len(r.objects))
	for _, e := range r.objects {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	list := make([]*model.SpaceObject, len(entries))
	for i, e := range entries {
		list[i] = e.obj
	}
	r.list = list
	r.dirty = false
	return r.list
}

// Surroundings returns the objects strictly closer than radius to origin.
func (r *ObjectRegistry) Surroundings(origin mgl64.Vec3, radius float64) []*model.SpaceObject {
	var res []*model.SpaceObject
	for _, obj := range r.All() {
		if core.WithinRange(origin, obj.Position, radius) {
			res = append(res, obj)
		}
	}
	return res
}
