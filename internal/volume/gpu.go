package volume

import (
	"context"
	"slices"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/gpu"
	"github.com/zjrosen/datarep/internal/representation"
)

// GPU is a volume resident in device texture memory. Values are stored as float32.
type GPU struct {
	device gpu.Device
	id     gpu.TextureID
	format format.Descriptor
	dims   []int
}

var _ representation.Representation = (*GPU)(nil)

func (g *GPU) Kind() representation.Kind  { return KindGPU }
func (g *GPU) Format() format.Descriptor { return g.format }
func (g *GPU) Dims() []int               { return slices.Clone(g.dims) }

// Texture returns the device texture holding the volume.
func (g *GPU) Texture() gpu.TextureID { return g.id }

// Clone copies the texture on the device.
func (g *GPU) Clone() (representation.Representation, error) {
	id, err := g.device.Copy(context.Background(), g.id)
	if err != nil {
		return nil, err
	}
	return &GPU{device: g.device, id: id, format: g.format, dims: slices.Clone(g.dims)}, nil
}

// Download reads the texture back to host memory.
func (g *GPU) Download(ctx context.Context) ([]float64, error) {
	data, err := g.device.Download(ctx, g.id)
	if err != nil {
		return nil, err
	}
	return widen(data), nil
}

// Free releases the texture.
func (g *GPU) Free() error {
	return g.device.Free(g.id)
}

// Discard frees the texture of a copy that never reached a volume.
func (g *GPU) Discard() error { return g.Free() }

func uploadRAM(ctx context.Context, device gpu.Device, r *RAM) (*GPU, error) {
	id, err := device.Upload(ctx, r.dims, r.format.Components(), narrow(r.data))
	if err != nil {
		return nil, err
	}
	return &GPU{device: device, id: id, format: r.format, dims: slices.Clone(r.dims)}, nil
}

func narrow(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

func widen(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
