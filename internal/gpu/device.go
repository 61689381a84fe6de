// Package gpu emulates device-resident texture memory. Textures hold float32
// elements, so data uploaded from wider formats loses precision.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/zjrosen/datarep/internal/log"
)

var (
	ErrUnknownTexture = errors.New("unknown texture")
	ErrDeviceFull     = errors.New("device texture limit reached")
	ErrSizeMismatch   = errors.New("texture size mismatch")
)

// TextureID identifies a texture on a device.
type TextureID uuid.UUID

func (id TextureID) String() string { return uuid.UUID(id).String() }

// TextureInfo describes an allocated texture.
type TextureInfo struct {
	ID         TextureID
	Dims       []int
	Components int
	Elements   int
}

// Device allocates and transfers textures.
type Device interface {
	Upload(ctx context.Context, dims []int, components int, data []float32) (TextureID, error)
	Download(ctx context.Context, id TextureID) ([]float32, error)
	// Write replaces the contents of an existing texture. len(data) must match.
	Write(ctx context.Context, id TextureID, data []float32) error
	Copy(ctx context.Context, id TextureID) (TextureID, error)
	Info(id TextureID) (TextureInfo, error)
	Free(id TextureID) error
}

// Stats counts device activity.
type Stats struct {
	Textures  int
	Elements  int
	Uploads   uint64
	Downloads uint64
	Writes    uint64
}

type texture struct {
	info TextureInfo
	data []float32
}

// MemoryDevice is a Device backed by host memory.
type MemoryDevice struct {
	mu          sync.RWMutex
	textures    map[TextureID]*texture
	maxTextures int

	uploads   atomic.Uint64
	downloads atomic.Uint64
	writes    atomic.Uint64
}

var _ Device = (*MemoryDevice)(nil)

// Option configures a MemoryDevice.
type Option func(*MemoryDevice)

// WithMaxTextures caps the number of live textures. Zero means unlimited.
func WithMaxTextures(n int) Option {
	return func(d *MemoryDevice) { d.maxTextures = n }
}

// NewMemoryDevice creates an empty device.
func NewMemoryDevice(opts ...Option) *MemoryDevice {
	d := &MemoryDevice{textures: make(map[TextureID]*texture)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func elements(dims []int, components int) int {
	n := components
	for _, d := range dims {
		n *= d
	}
	return n
}

// Upload allocates a texture holding a copy of data.
func (d *MemoryDevice) Upload(ctx context.Context, dims []int, components int, data []float32) (TextureID, error) {
	if err := ctx.Err(); err != nil {
		return TextureID{}, err
	}
	if components < 1 {
		return TextureID{}, fmt.Errorf("upload: invalid component count %d", components)
	}
	want := elements(dims, components)
	if len(data) != want {
		return TextureID{}, fmt.Errorf("upload: %w: got %d values, want %d", ErrSizeMismatch, len(data), want)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.maxTextures > 0 && len(d.textures) >= d.maxTextures {
		return TextureID{}, ErrDeviceFull
	}
	id := TextureID(uuid.New())
	d.textures[id] = &texture{
		info: TextureInfo{ID: id, Dims: slices.Clone(dims), Components: components, Elements: want},
		data: slices.Clone(data),
	}
	d.uploads.Add(1)
	log.Debug(log.CatDevice, "texture uploaded", "id", id, "elements", want)
	return id, nil
}

// Download returns a copy of the texture's contents.
func (d *MemoryDevice) Download(ctx context.Context, id TextureID) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	tex, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", id, ErrUnknownTexture)
	}
	d.downloads.Add(1)
	return slices.Clone(tex.data), nil
}

// Write overwrites the texture in place.
func (d *MemoryDevice) Write(ctx context.Context, id TextureID, data []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("write %s: %w", id, ErrUnknownTexture)
	}
	if len(data) != len(tex.data) {
		return fmt.Errorf("write %s: %w: got %d values, want %d", id, ErrSizeMismatch, len(data), len(tex.data))
	}
	copy(tex.data, data)
	d.writes.Add(1)
	return nil
}

// Copy duplicates a texture on the device.
func (d *MemoryDevice) Copy(ctx context.Context, id TextureID) (TextureID, error) {
	if err := ctx.Err(); err != nil {
		return TextureID{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, ok := d.textures[id]
	if !ok {
		return TextureID{}, fmt.Errorf("copy %s: %w", id, ErrUnknownTexture)
	}
	if d.maxTextures > 0 && len(d.textures) >= d.maxTextures {
		return TextureID{}, ErrDeviceFull
	}
	dup := TextureID(uuid.New())
	info := tex.info
	info.ID = dup
	info.Dims = slices.Clone(tex.info.Dims)
	d.textures[dup] = &texture{info: info, data: slices.Clone(tex.data)}
	return dup, nil
}

// Info describes a texture.
func (d *MemoryDevice) Info(id TextureID) (TextureInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tex, ok := d.textures[id]
	if !ok {
		return TextureInfo{}, fmt.Errorf("info %s: %w", id, ErrUnknownTexture)
	}
	info := tex.info
	info.Dims = slices.Clone(info.Dims)
	return info, nil
}

// Free releases a texture.
func (d *MemoryDevice) Free(id TextureID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.textures[id]; !ok {
		return fmt.Errorf("free %s: %w", id, ErrUnknownTexture)
	}
	delete(d.textures, id)
	log.Debug(log.CatDevice, "texture freed", "id", id)
	return nil
}

// Stats reports live textures and transfer counts.
func (d *MemoryDevice) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{
		Textures:  len(d.textures),
		Uploads:   d.uploads.Load(),
		Downloads: d.downloads.Load(),
		Writes:    d.writes.Load(),
	}
	for _, tex := range d.textures {
		s.Elements += len(tex.data)
	}
	return s
}
