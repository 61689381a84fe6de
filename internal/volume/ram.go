package volume

import (
	"slices"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/representation"
)

// RAM holds a volume in host memory as x-fastest, component-interleaved values.
type RAM struct {
	format format.Descriptor
	dims   []int
	data   []float64
}

var _ representation.Representation = (*RAM)(nil)

// NewRAM allocates a zeroed volume.
func NewRAM(f format.Descriptor, dims []int) *RAM {
	n := f.Components()
	for _, d := range dims {
		n *= d
	}
	return &RAM{format: f, dims: slices.Clone(dims), data: make([]float64, n)}
}

func (r *RAM) Kind() representation.Kind  { return KindRAM }
func (r *RAM) Format() format.Descriptor { return r.format }
func (r *RAM) Dims() []int               { return slices.Clone(r.dims) }

func (r *RAM) Clone() (representation.Representation, error) {
	return &RAM{format: r.format, dims: slices.Clone(r.dims), data: slices.Clone(r.data)}, nil
}

// Data returns the backing slice. Writes through it are only sanctioned on an
// instance obtained for writing.
func (r *RAM) Data() []float64 { return r.data }

func (r *RAM) index(x, y, z, c int) int {
	return ((z*r.dims[1]+y)*r.dims[0]+x)*r.format.Components() + c
}

// At returns component c of voxel (x, y, z).
func (r *RAM) At(x, y, z, c int) float64 { return r.data[r.index(x, y, z, c)] }

// Set assigns component c of voxel (x, y, z).
func (r *RAM) Set(x, y, z, c int, v float64) { r.data[r.index(x, y, z, c)] = v }

// Fill sets every component of every voxel to v.
func (r *RAM) Fill(v float64) {
	for i := range r.data {
		r.data[i] = v
	}
}
