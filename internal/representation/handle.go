package representation

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle is the token returned by every registration. Release withdraws the
// registration it was issued for; later calls are no-ops. If the registration
// was already replaced by a newer one for the same slot, Release leaves the
// newer one in place.
type Handle struct {
	id       uuid.UUID
	label    string
	once     sync.Once
	released atomic.Bool
	release  func()
}

// NewHandle wraps release so it runs at most once.
// Registries call it; tests and collaborators may use it for their own registrations.
func NewHandle(label string, release func()) *Handle {
	return &Handle{
		id:      uuid.New(),
		label:   label,
		release: release,
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() uuid.UUID { return h.id }

func (h *Handle) String() string { return h.label + "#" + h.id.String()[:8] }

// Release withdraws the registration. Safe on a nil handle and safe to call repeatedly.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.released.Store(true)
		if h.release != nil {
			h.release()
		}
	})
}

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	return h != nil && h.released.Load()
}

// Handles is the set of registrations made by one module.
type Handles []*Handle

// Release releases every handle, most recent first.
func (hs Handles) Release() {
	for i := len(hs) - 1; i >= 0; i-- {
		hs[i].Release()
	}
}
