package representation

import (
	"maps"

	"github.com/zjrosen/datarep/internal/format"
)

// Representation is one backend encoding of a data object's content.
// Instances are owned by exactly one cache and never reference their owner.
type Representation interface {
	Kind() Kind
	Format() format.Descriptor
	// Clone returns an independent deep copy.
	Clone() (Representation, error)
}

// Discarder is implemented by representations that hold resources outside Go
// memory, such as device textures or stored blobs. Discard frees all of them;
// the representation must not be used afterwards.
type Discarder interface {
	Discard() error
}

// Discard frees the external resources of rep, if it holds any.
func Discard(rep Representation) error {
	if d, ok := rep.(Discarder); ok {
		return d.Discard()
	}
	return nil
}

// Fill selects how a freshly created representation is initialised.
type Fill int

const (
	FillZero Fill = iota // contents are zeroed
	FillNone             // contents are left as allocated (lazy kinds defer entirely)
)

// Params carries kind-specific construction parameters.
type Params struct {
	// Dims are the extents of the data, e.g. {x, y, z} for a volume or {n} for a buffer.
	Dims []int
	Fill Fill
	// Location identifies backing storage for deferred-load kinds.
	Location string
	Options  map[string]string
}

// Elements returns the product of Dims, or 0 when Dims is empty or contains a non-positive extent.
func (p Params) Elements() int {
	if len(p.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range p.Dims {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// Clone returns a copy that shares no slices or maps with p.
func (p Params) Clone() Params {
	out := p
	if p.Dims != nil {
		out.Dims = append([]int(nil), p.Dims...)
	}
	if p.Options != nil {
		out.Options = maps.Clone(p.Options)
	}
	return out
}
