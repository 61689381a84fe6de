package volume

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/infrastructure/sqlite"
	"github.com/zjrosen/datarep/internal/representation"
)

// BlobStore persists volume bytes. *sqlite.BlobRepository implements it.
type BlobStore interface {
	Put(ctx context.Context, b *sqlite.Blob) error
	Get(ctx context.Context, key string) (*sqlite.Blob, error)
	Version(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

var _ BlobStore = (*sqlite.BlobRepository)(nil)

// Disk is a deferred reference to a blob. It holds no voxel data; bytes are read
// only when another kind is derived from it.
type Disk struct {
	store  BlobStore
	key    string
	format format.Descriptor
	dims   []int
	// seen is the blob version last read or written through this instance, 0 if none.
	seen int64
}

var _ representation.Representation = (*Disk)(nil)

func newKey() string { return "volume/" + uuid.NewString() }

func (d *Disk) Kind() representation.Kind  { return KindDisk }
func (d *Disk) Format() format.Descriptor { return d.format }
func (d *Disk) Dims() []int               { return slices.Clone(d.dims) }

// Key returns the blob key.
func (d *Disk) Key() string { return d.key }

// Clone copies the blob to a fresh key. A blob that was never written is not copied.
func (d *Disk) Clone() (representation.Representation, error) {
	ctx := context.Background()
	dup := &Disk{store: d.store, key: newKey(), format: d.format, dims: slices.Clone(d.dims)}

	b, err := d.store.Get(ctx, d.key)
	if errors.Is(err, sqlite.ErrBlobNotFound) {
		return dup, nil
	}
	if err != nil {
		return nil, err
	}
	b.Key = dup.key
	b.CreatedAt = time.Time{}
	if err := d.store.Put(ctx, b); err != nil {
		return nil, err
	}
	dup.seen = b.Version
	return dup, nil
}

// Discard deletes the blob. It is used for copies that never reached a volume;
// a volume's own blob outlives it.
func (d *Disk) Discard() error {
	err := d.store.Delete(context.Background(), d.key)
	if errors.Is(err, sqlite.ErrBlobNotFound) {
		return nil
	}
	return err
}

// Load reads and decodes the blob. The stored format and dimensions must match.
func (d *Disk) Load(ctx context.Context) ([]float64, error) {
	b, err := d.store.Get(ctx, d.key)
	if err != nil {
		return nil, err
	}
	if b.Format != d.format.Name() {
		return nil, fmt.Errorf("blob %q holds %s, want %s", d.key, b.Format, d.format)
	}
	if !slices.Equal(b.Dims, d.dims) {
		return nil, fmt.Errorf("blob %q has dims %v, want %v", d.key, b.Dims, d.dims)
	}
	values, err := format.Decode(d.format, b.Data)
	if err != nil {
		return nil, err
	}
	d.seen = b.Version
	return values, nil
}

// Store encodes values in the volume's format and writes them under the key.
func (d *Disk) Store(ctx context.Context, values []float64) error {
	data, err := format.Encode(d.format, values)
	if err != nil {
		return err
	}
	b := &sqlite.Blob{Key: d.key, Format: d.format.Name(), Dims: slices.Clone(d.dims), Data: data}
	if err := d.store.Put(ctx, b); err != nil {
		return err
	}
	d.seen = b.Version
	return nil
}

// Changed reports whether the blob was rewritten since this instance last read
// or wrote it. A blob never touched through this instance, or missing, is unchanged.
func (d *Disk) Changed(ctx context.Context) (bool, error) {
	if d.seen == 0 {
		return false, nil
	}
	version, err := d.store.Version(ctx, d.key)
	if errors.Is(err, sqlite.ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return version != d.seen, nil
}
