package representation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/log"
)

// Creator builds a default instance of one kind with no source representation.
type Creator interface {
	Kind() Kind
	Create(ctx context.Context, f format.Descriptor, p Params) (Representation, error)
}

// CreatorFunc is the body of a creator.
type CreatorFunc func(ctx context.Context, f format.Descriptor, p Params) (Representation, error)

type funcCreator struct {
	kind Kind
	fn   CreatorFunc
}

// NewCreator builds a Creator for kind from fn.
func NewCreator(kind Kind, fn CreatorFunc) Creator {
	return &funcCreator{kind: kind, fn: fn}
}

func (c *funcCreator) Kind() Kind { return c.kind }

func (c *funcCreator) Create(ctx context.Context, f format.Descriptor, p Params) (Representation, error) {
	return c.fn(ctx, f, p)
}

type creatorEntry struct {
	creator Creator
	id      uuid.UUID
}

// CreatorRegistry maps kinds to creators for one family. It is safe for concurrent use.
type CreatorRegistry struct {
	family  Family
	mu      sync.RWMutex
	entries map[Kind]creatorEntry
}

// NewCreatorRegistry creates an empty registry for family.
func NewCreatorRegistry(family Family) *CreatorRegistry {
	return &CreatorRegistry{
		family:  family,
		entries: make(map[Kind]creatorEntry),
	}
}

// Family returns the family this registry serves.
func (r *CreatorRegistry) Family() Family { return r.family }

// Register installs c for c.Kind(), replacing any earlier creator for that kind.
func (r *CreatorRegistry) Register(c Creator) *Handle {
	kind := c.Kind()
	label := fmt.Sprintf("%s/creator/%s", r.family, kind)

	var h *Handle
	h = NewHandle(label, func() { r.unregister(kind, h.ID()) })

	r.mu.Lock()
	_, replaced := r.entries[kind]
	r.entries[kind] = creatorEntry{creator: c, id: h.ID()}
	r.mu.Unlock()

	if replaced {
		log.Info(log.CatRegistry, "creator replaced", "family", r.family, "kind", kind, "handle", h)
	} else {
		log.Debug(log.CatRegistry, "creator registered", "family", r.family, "kind", kind, "handle", h)
	}
	return h
}

func (r *CreatorRegistry) unregister(kind Kind, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[kind]
	if !ok || entry.id != id {
		return
	}
	delete(r.entries, kind)
	log.Debug(log.CatRegistry, "creator released", "family", r.family, "kind", kind)
}

// Has reports whether a creator is registered for kind.
func (r *CreatorRegistry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[kind]
	return ok
}

// Kinds returns the kinds with a registered creator, sorted.
func (r *CreatorRegistry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	return SortKinds(kinds)
}

// Create builds a default instance of kind. It returns a *NoSuchCreatorError when no
// creator is registered for kind.
func (r *CreatorRegistry) Create(ctx context.Context, kind Kind, f format.Descriptor, p Params) (Representation, error) {
	r.mu.RLock()
	entry, ok := r.entries[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &NoSuchCreatorError{Family: r.family, Kind: kind}
	}
	if !f.Valid() {
		return nil, &CreateFailedError{Family: r.family, Kind: kind, Err: &format.UnknownFormatError{Name: f.Name()}}
	}

	rep, err := entry.creator.Create(ctx, f, p)
	if err != nil {
		return nil, &CreateFailedError{Family: r.family, Kind: kind, Err: err}
	}
	if rep == nil || rep.Kind() != kind {
		if rep != nil {
			_ = Discard(rep)
		}
		return nil, &CreateFailedError{Family: r.family, Kind: kind, Err: fmt.Errorf("creator returned %v", describe(rep))}
	}
	return rep, nil
}

func describe(rep Representation) string {
	if rep == nil {
		return "nil"
	}
	return "kind " + rep.Kind().String()
}
