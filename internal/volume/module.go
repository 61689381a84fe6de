package volume

import (
	"context"
	"fmt"
	"slices"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/gpu"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/representation"
)

// Module registers the volume kinds. Kinds whose backend is nil are skipped:
// without a Device there is no gpu kind, without a Store no disk kind.
type Module struct {
	Device gpu.Device
	Store  BlobStore
}

// Register installs the module's creators and rules on pair.
func (m Module) Register(pair *registry.Pair) representation.Handles {
	hs := representation.Handles{
		pair.Creators.Register(representation.NewCreator(KindRAM, createRAM)),
	}
	if m.Device != nil {
		hs = append(hs,
			pair.Creators.Register(representation.NewCreator(KindGPU, m.createGPU)),
			pair.Conversions.Register(representation.NewUpdatingRule(KindRAM, KindGPU, m.ramToGPU, updateGPUFromRAM)),
			pair.Conversions.Register(representation.NewUpdatingRule(KindGPU, KindRAM, gpuToRAM, updateRAMFromGPU)),
		)
	}
	if m.Store != nil {
		hs = append(hs,
			pair.Creators.Register(representation.NewCreator(KindDisk, m.createDisk)),
			pair.Conversions.Register(representation.NewUpdatingRule(KindDisk, KindRAM, diskToRAM, updateRAMFromDisk)),
			pair.Conversions.Register(representation.NewUpdatingRule(KindRAM, KindDisk, m.ramToDisk, updateDiskFromRAM)),
		)
	}
	return hs
}

func createRAM(_ context.Context, f format.Descriptor, p representation.Params) (representation.Representation, error) {
	if err := checkDims(p.Dims); err != nil {
		return nil, err
	}
	// FillZero and FillNone both start zeroed; Go has no uninitialised memory.
	return NewRAM(f, p.Dims), nil
}

func (m Module) createGPU(ctx context.Context, f format.Descriptor, p representation.Params) (representation.Representation, error) {
	if err := checkDims(p.Dims); err != nil {
		return nil, err
	}
	return uploadRAM(ctx, m.Device, NewRAM(f, p.Dims))
}

// createDisk never touches the store: Params.Location names the blob to read
// later. Without a location a new key is allocated.
func (m Module) createDisk(_ context.Context, f format.Descriptor, p representation.Params) (representation.Representation, error) {
	if err := checkDims(p.Dims); err != nil {
		return nil, err
	}
	key := p.Location
	if key == "" {
		key = newKey()
	}
	return &Disk{store: m.Store, key: key, format: f, dims: slices.Clone(p.Dims)}, nil
}

func (m Module) ramToGPU(ctx context.Context, src representation.Representation) (representation.Representation, error) {
	r, err := as[*RAM](src)
	if err != nil {
		return nil, err
	}
	return uploadRAM(ctx, m.Device, r)
}

func updateGPUFromRAM(ctx context.Context, src, dst representation.Representation) error {
	r, err := as[*RAM](src)
	if err != nil {
		return err
	}
	g, err := as[*GPU](dst)
	if err != nil {
		return err
	}
	if !sameLayout(r, g) {
		return fmt.Errorf("gpu texture has dims %v, want %v", g.dims, r.dims)
	}
	return g.device.Write(ctx, g.id, narrow(r.data))
}

func gpuToRAM(ctx context.Context, src representation.Representation) (representation.Representation, error) {
	g, err := as[*GPU](src)
	if err != nil {
		return nil, err
	}
	data, err := g.Download(ctx)
	if err != nil {
		return nil, err
	}
	return &RAM{format: g.format, dims: slices.Clone(g.dims), data: data}, nil
}

func updateRAMFromGPU(ctx context.Context, src, dst representation.Representation) error {
	g, err := as[*GPU](src)
	if err != nil {
		return err
	}
	r, err := as[*RAM](dst)
	if err != nil {
		return err
	}
	data, err := g.Download(ctx)
	if err != nil {
		return err
	}
	return fillRAM(r, data)
}

func diskToRAM(ctx context.Context, src representation.Representation) (representation.Representation, error) {
	d, err := as[*Disk](src)
	if err != nil {
		return nil, err
	}
	data, err := d.Load(ctx)
	if err != nil {
		return nil, err
	}
	r := NewRAM(d.format, d.dims)
	if err := fillRAM(r, data); err != nil {
		return nil, err
	}
	return r, nil
}

func updateRAMFromDisk(ctx context.Context, src, dst representation.Representation) error {
	d, err := as[*Disk](src)
	if err != nil {
		return err
	}
	r, err := as[*RAM](dst)
	if err != nil {
		return err
	}
	data, err := d.Load(ctx)
	if err != nil {
		return err
	}
	return fillRAM(r, data)
}

func (m Module) ramToDisk(ctx context.Context, src representation.Representation) (representation.Representation, error) {
	r, err := as[*RAM](src)
	if err != nil {
		return nil, err
	}
	d := &Disk{store: m.Store, key: newKey(), format: r.format, dims: slices.Clone(r.dims)}
	if err := d.Store(ctx, r.data); err != nil {
		return nil, err
	}
	return d, nil
}

func updateDiskFromRAM(ctx context.Context, src, dst representation.Representation) error {
	r, err := as[*RAM](src)
	if err != nil {
		return err
	}
	d, err := as[*Disk](dst)
	if err != nil {
		return err
	}
	return d.Store(ctx, r.data)
}

func fillRAM(r *RAM, data []float64) error {
	if len(data) != len(r.data) {
		return fmt.Errorf("got %d values for a volume of %d", len(data), len(r.data))
	}
	copy(r.data, data)
	return nil
}

func as[T representation.Representation](rep representation.Representation) (T, error) {
	t, ok := rep.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("volume: got %T, want %T", rep, zero)
	}
	return t, nil
}
