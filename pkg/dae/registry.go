package dae

import "strings"

// Registry is the document-scoped identifier table. Every element that
// carries an id registers itself here during load; #id references elsewhere
// in the document resolve through it.
//
// Elements may reference identifiers that appear later in document order,
// so resolution is two-phase: references that miss during the first parse
// pass are parked with Defer, and Flush drains them once the whole document
// has been read.
type Registry struct {
	entities map[string]any
	deferred map[string][]func(any)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]any),
		deferred: make(map[string][]func(any)),
	}
}

// stripRef removes the leading "#" of a reference string.
func stripRef(ref string) string {
	return strings.TrimPrefix(ref, "#")
}

// Register adds an entity under id. Registering an id twice fails with
// KindDuplicateID.
func (r *Registry) Register(id string, entity any) error {
	if _, ok := r.entities[id]; ok {
		return errDuplicateID(id)
	}
	r.entities[id] = entity
	return nil
}

// Unregister removes an id. Used when the owning entity is deleted.
func (r *Registry) Unregister(id string) {
	delete(r.entities, id)
}

// Resolve looks up a "#id" (or bare id) reference. A miss fails with
// KindBrokenRef; the caller decides whether to park the reference with
// Defer instead.
func (r *Registry) Resolve(ref string) (any, error) {
	id := stripRef(ref)
	e, ok := r.entities[id]
	if !ok {
		return nil, errBrokenRef("", "no element with id %q", id)
	}
	return e, nil
}

// Defer parks a reference for late binding. Once the target id appears and
// Flush runs, bind is called with the entity. References still parked after
// Flush are broken.
func (r *Registry) Defer(ref string, bind func(any)) {
	id := stripRef(ref)
	r.deferred[id] = append(r.deferred[id], bind)
}

// Flush repeatedly drains the deferred queue, binding every reference whose
// target has appeared, until no further progress is made. It returns the ids
// that never resolved, one entry per parked reference.
func (r *Registry) Flush() []string {
	for {
		progress := false
		for id, binds := range r.deferred {
			e, ok := r.entities[id]
			if !ok {
				continue
			}
			delete(r.deferred, id)
			for _, bind := range binds {
				bind(e)
			}
			progress = true
		}
		if !progress {
			break
		}
	}
	var broken []string
	for id, binds := range r.deferred {
		for range binds {
			broken = append(broken, id)
		}
	}
	return broken
}
