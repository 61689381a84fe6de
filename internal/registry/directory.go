package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/representation"
)

var (
	ErrAlreadyInitialized = errors.New("registry directory already initialized")
	ErrNotInitialized     = errors.New("registry directory not initialized")
)

type familyEntry struct {
	pair *Pair
	id   uuid.UUID
}

// Directory maps family tags to registry pairs. Lookups take a read lock only.
type Directory struct {
	mu       sync.RWMutex
	families map[representation.Family]familyEntry
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{families: make(map[representation.Family]familyEntry)}
}

// RegisterFamily installs pair for family. A later registration for the same family
// replaces it; releasing the replaced handle does nothing.
func (d *Directory) RegisterFamily(family representation.Family, pair *Pair) *representation.Handle {
	if pair == nil {
		panic(fmt.Sprintf("registry: nil pair for family %s", family))
	}

	var h *representation.Handle
	h = representation.NewHandle("directory/"+string(family), func() { d.unregister(family, h.ID()) })

	d.mu.Lock()
	_, replaced := d.families[family]
	d.families[family] = familyEntry{pair: pair, id: h.ID()}
	d.mu.Unlock()

	log.Debug(log.CatRegistry, "family registered", "family", family, "replaced", replaced, "handle", h)
	return h
}

func (d *Directory) unregister(family representation.Family, id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.families[family]; ok && entry.id == id {
		delete(d.families, family)
		log.Debug(log.CatRegistry, "family released", "family", family)
	}
}

// Get returns the pair registered for family.
func (d *Directory) Get(family representation.Family) (*Pair, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.families[family]
	return entry.pair, ok
}

// Families returns the registered family tags, sorted.
func (d *Directory) Families() []representation.Family {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]representation.Family, 0, len(d.families))
	for f := range d.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// process-wide directory, set between Init and Shutdown.
var (
	globalMu  sync.RWMutex
	globalDir *Directory
)

// Init creates the process-wide directory. It must be paired with Shutdown.
func Init() (*Directory, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDir != nil {
		return nil, ErrAlreadyInitialized
	}
	globalDir = NewDirectory()
	log.Info(log.CatRegistry, "directory initialized")
	return globalDir, nil
}

// Shutdown drops the process-wide directory. Scopes that already resolved a family
// keep the pair they resolved.
func Shutdown() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDir == nil {
		return ErrNotInitialized
	}
	globalDir = nil
	log.Info(log.CatRegistry, "directory shut down")
	return nil
}

func processDirectory() *Directory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalDir
}
