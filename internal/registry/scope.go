package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/representation"
)

type localEntry struct {
	pair *Pair
	id   uuid.UUID
}

// Scope resolves families for data objects. Local overrides win; otherwise the
// family is fetched from the directory once and kept for the scope's lifetime.
// A Scope is safe for concurrent use.
type Scope struct {
	mu       sync.RWMutex
	local    map[representation.Family]localEntry
	resolved map[representation.Family]*Pair

	// dir is nil for the process-wide directory.
	dir      *Directory
	isolated bool
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithDirectory makes the scope fall back to dir instead of the process-wide directory.
func WithDirectory(dir *Directory) ScopeOption {
	return func(s *Scope) {
		s.dir = dir
	}
}

// NewScope creates a scope that falls back to a directory.
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		local:    make(map[representation.Family]localEntry),
		resolved: make(map[representation.Family]*Pair),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewIsolatedScope creates a scope that only sees local registrations.
func NewIsolatedScope() *Scope {
	s := NewScope()
	s.isolated = true
	return s
}

// RegisterLocal installs pair as this scope's override for family.
func (s *Scope) RegisterLocal(family representation.Family, pair *Pair) *representation.Handle {
	if pair == nil {
		panic(fmt.Sprintf("registry: nil local pair for family %s", family))
	}

	var h *representation.Handle
	h = representation.NewHandle("scope/"+string(family), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.local[family]; ok && e.id == h.ID() {
			delete(s.local, family)
		}
	})

	s.mu.Lock()
	s.local[family] = localEntry{pair: pair, id: h.ID()}
	s.mu.Unlock()
	return h
}

// Lookup resolves family, reporting false when neither a local override nor a
// directory entry exists.
func (s *Scope) Lookup(family representation.Family) (*Pair, bool) {
	s.mu.RLock()
	if e, ok := s.local[family]; ok {
		s.mu.RUnlock()
		return e.pair, true
	}
	if p, ok := s.resolved[family]; ok {
		s.mu.RUnlock()
		return p, true
	}
	s.mu.RUnlock()

	if s.isolated {
		return nil, false
	}
	dir := s.dir
	if dir == nil {
		dir = processDirectory()
	}
	if dir == nil {
		return nil, false
	}
	pair, ok := dir.Get(family)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.resolved[family]; ok {
		return existing, true
	}
	s.resolved[family] = pair
	log.Debug(log.CatRegistry, "scope resolved family", "family", family)
	return pair, true
}

// Registries resolves family and panics when it is not registered anywhere the
// scope can see. A missing family is a wiring mistake, not a runtime condition.
func (s *Scope) Registries(family representation.Family) *Pair {
	pair, ok := s.Lookup(family)
	if !ok {
		panic(fmt.Sprintf("registry: no registries for family %q", family))
	}
	return pair
}
