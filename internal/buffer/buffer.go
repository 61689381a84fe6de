// Package buffer is the one-dimensional data family, held in host memory (ram)
// or on the device (gpu).
package buffer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/gpu"
	"github.com/zjrosen/datarep/internal/pubsub"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/repcache"
	"github.com/zjrosen/datarep/internal/representation"
)

const Family representation.Family = "buffer"

const (
	KindRAM representation.Kind = "ram"
	KindGPU representation.Kind = "gpu"
)

// RAM is a buffer in host memory.
type RAM struct {
	format format.Descriptor
	data   []float64
}

func (r *RAM) Kind() representation.Kind  { return KindRAM }
func (r *RAM) Format() format.Descriptor { return r.format }
func (r *RAM) Len() int                  { return len(r.data) / r.format.Components() }

// Data returns the backing slice, components interleaved.
func (r *RAM) Data() []float64 { return r.data }

func (r *RAM) Clone() (representation.Representation, error) {
	return &RAM{format: r.format, data: slices.Clone(r.data)}, nil
}

// GPU is a buffer on the device, stored as float32.
type GPU struct {
	device gpu.Device
	id     gpu.TextureID
	format format.Descriptor
	n      int
}

func (g *GPU) Kind() representation.Kind  { return KindGPU }
func (g *GPU) Format() format.Descriptor { return g.format }
func (g *GPU) Texture() gpu.TextureID    { return g.id }

func (g *GPU) Clone() (representation.Representation, error) {
	id, err := g.device.Copy(context.Background(), g.id)
	if err != nil {
		return nil, err
	}
	return &GPU{device: g.device, id: id, format: g.format, n: g.n}, nil
}

// Discard frees the texture of a copy that never reached a buffer.
func (g *GPU) Discard() error { return g.device.Free(g.id) }

// Module registers the buffer kinds. Without a Device only ram is available.
type Module struct {
	Device gpu.Device
}

// Register installs the module's creators and rules on pair.
func (m Module) Register(pair *registry.Pair) representation.Handles {
	hs := representation.Handles{
		pair.Creators.Register(representation.NewCreator(KindRAM, createRAM)),
	}
	if m.Device == nil {
		return hs
	}
	return append(hs,
		pair.Creators.Register(representation.NewCreator(KindGPU, m.createGPU)),
		pair.Conversions.Register(representation.NewUpdatingRule(KindRAM, KindGPU, m.upload, refreshGPU)),
		pair.Conversions.Register(representation.NewUpdatingRule(KindGPU, KindRAM, download, refreshRAM)),
	)
}

func length(p representation.Params) (int, error) {
	if len(p.Dims) != 1 || p.Dims[0] <= 0 {
		return 0, fmt.Errorf("buffer needs one positive dimension, got %v", p.Dims)
	}
	return p.Dims[0], nil
}

func createRAM(_ context.Context, f format.Descriptor, p representation.Params) (representation.Representation, error) {
	n, err := length(p)
	if err != nil {
		return nil, err
	}
	return &RAM{format: f, data: make([]float64, n*f.Components())}, nil
}

func (m Module) createGPU(ctx context.Context, f format.Descriptor, p representation.Params) (representation.Representation, error) {
	n, err := length(p)
	if err != nil {
		return nil, err
	}
	id, err := m.Device.Upload(ctx, []int{n}, f.Components(), make([]float32, n*f.Components()))
	if err != nil {
		return nil, err
	}
	return &GPU{device: m.Device, id: id, format: f, n: n}, nil
}

func (m Module) upload(ctx context.Context, src representation.Representation) (representation.Representation, error) {
	r := src.(*RAM)
	id, err := m.Device.Upload(ctx, []int{r.Len()}, r.format.Components(), toFloat32(r.data))
	if err != nil {
		return nil, err
	}
	return &GPU{device: m.Device, id: id, format: r.format, n: r.Len()}, nil
}

func refreshGPU(ctx context.Context, src, dst representation.Representation) error {
	r, g := src.(*RAM), dst.(*GPU)
	return g.device.Write(ctx, g.id, toFloat32(r.data))
}

func download(ctx context.Context, src representation.Representation) (representation.Representation, error) {
	g := src.(*GPU)
	data, err := g.device.Download(ctx, g.id)
	if err != nil {
		return nil, err
	}
	return &RAM{format: g.format, data: toFloat64(data)}, nil
}

func refreshRAM(ctx context.Context, src, dst representation.Representation) error {
	g, r := src.(*GPU), dst.(*RAM)
	data, err := g.device.Download(ctx, g.id)
	if err != nil {
		return err
	}
	if len(data) != len(r.data) {
		return fmt.Errorf("texture holds %d values, buffer %d", len(data), len(r.data))
	}
	for i, v := range data {
		r.data[i] = float64(v)
	}
	return nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// Buffer is a one-dimensional data object; access is serialised by a mutex.
type Buffer struct {
	mu    sync.Mutex
	cache *repcache.Cache
}

// New creates an empty buffer of n elements.
func New(scope *registry.Scope, f format.Descriptor, n int, publisher pubsub.Publisher[repcache.Change]) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer length must be positive, got %d", n)
	}
	var opts []repcache.Option
	if publisher != nil {
		opts = append(opts, repcache.WithPublisher(publisher))
	}
	return &Buffer{cache: repcache.New(scope, Family, f, representation.Params{Dims: []int{n}}, opts...)}, nil
}

// RAM returns the host representation for reading.
func (b *Buffer) RAM(ctx context.Context) (*RAM, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return repcache.GetAs[*RAM](ctx, b.cache, KindRAM)
}

// EditableRAM returns the host representation for writing.
func (b *Buffer) EditableRAM(ctx context.Context) (*RAM, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return repcache.GetMutAs[*RAM](ctx, b.cache, KindRAM)
}

// GPU returns the device representation for reading.
func (b *Buffer) GPU(ctx context.Context) (*GPU, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return repcache.GetAs[*GPU](ctx, b.cache, KindGPU)
}

// Authoritative returns the kind holding the latest content.
func (b *Buffer) Authoritative() (representation.Kind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.AuthoritativeKind()
}

// Close frees the device copy, if any.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rep, ok := b.cache.Peek(KindGPU)
	if !ok {
		return nil
	}
	g, ok := rep.(*GPU)
	if !ok {
		return fmt.Errorf("buffer: held %T, want *buffer.GPU", rep)
	}
	return g.device.Free(g.id)
}
