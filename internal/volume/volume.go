package volume

import (
	"context"
	"slices"
	"sync"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/pubsub"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/repcache"
	"github.com/zjrosen/datarep/internal/representation"
)

// Volume is a three-dimensional data object. All access to its representations
// is serialised by a mutex, so a Volume may be shared between goroutines.
type Volume struct {
	mu    sync.Mutex
	cache *repcache.Cache
}

// Option configures a new Volume.
type Option func(*options)

type options struct {
	location  string
	fill      representation.Fill
	publisher pubsub.Publisher[repcache.Change]
}

// WithLocation names the blob a disk representation reads from.
func WithLocation(key string) Option {
	return func(o *options) { o.location = key }
}

// WithFill selects how freshly created representations are initialised.
func WithFill(fill representation.Fill) Option {
	return func(o *options) { o.fill = fill }
}

// WithPublisher reports representation changes to p.
func WithPublisher(p pubsub.Publisher[repcache.Change]) Option {
	return func(o *options) { o.publisher = p }
}

// New creates an empty volume of dims {x, y, z}. No representation exists until
// one is requested.
func New(scope *registry.Scope, f format.Descriptor, dims []int, opts ...Option) (*Volume, error) {
	if err := checkDims(dims); err != nil {
		return nil, err
	}
	if !f.Valid() {
		return nil, &format.UnknownFormatError{Name: f.Name()}
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	params := representation.Params{Dims: slices.Clone(dims), Fill: o.fill, Location: o.location}

	var copts []repcache.Option
	if o.publisher != nil {
		copts = append(copts, repcache.WithPublisher(o.publisher))
	}
	return &Volume{cache: repcache.New(scope, Family, f, params, copts...)}, nil
}

// Open attaches to a stored blob without reading it. The disk representation
// becomes authoritative; bytes are read on the first request for another kind.
func Open(ctx context.Context, scope *registry.Scope, key string, f format.Descriptor, dims []int, opts ...Option) (*Volume, error) {
	v, err := New(scope, f, dims, append(opts, WithLocation(key))...)
	if err != nil {
		return nil, err
	}
	if _, err := v.cache.Get(ctx, KindDisk); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Volume) Format() format.Descriptor { return v.cache.Format() }
func (v *Volume) Dims() []int               { return v.cache.Params().Dims }

// Read runs fn with an up-to-date representation of kind. fn must not write to it.
func (v *Volume) Read(ctx context.Context, kind representation.Kind, fn func(representation.Representation) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rep, err := v.cache.Get(ctx, kind)
	if err != nil {
		return err
	}
	return fn(rep)
}

// Write runs fn with a representation of kind that becomes authoritative.
func (v *Volume) Write(ctx context.Context, kind representation.Kind, fn func(representation.Representation) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rep, err := v.cache.GetMut(ctx, kind)
	if err != nil {
		return err
	}
	return fn(rep)
}

// RAM returns the host-memory representation for reading.
func (v *Volume) RAM(ctx context.Context) (*RAM, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return repcache.GetAs[*RAM](ctx, v.cache, KindRAM)
}

// EditableRAM returns the host-memory representation for writing; every other
// representation becomes stale.
func (v *Volume) EditableRAM(ctx context.Context) (*RAM, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return repcache.GetMutAs[*RAM](ctx, v.cache, KindRAM)
}

// GPU returns the device representation for reading.
func (v *Volume) GPU(ctx context.Context) (*GPU, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return repcache.GetAs[*GPU](ctx, v.cache, KindGPU)
}

// Save brings the disk representation up to date and returns its blob key.
// A volume with no representation yet is saved zero-filled.
func (v *Volume) Save(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	// Bootstrapping disk directly would only allocate a key; deriving it from
	// ram writes the blob.
	if v.cache.Empty() {
		if _, err := v.cache.Get(ctx, KindRAM); err != nil {
			return "", err
		}
	}
	d, err := repcache.GetAs[*Disk](ctx, v.cache, KindDisk)
	if err != nil {
		return "", err
	}
	return d.Key(), nil
}

// Location returns the blob key of the held disk representation, if any.
// The blob may be stale; Save brings it up to date.
func (v *Volume) Location() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := peekAs[*Disk](v.cache, KindDisk)
	if !ok {
		return "", false
	}
	return d.Key(), true
}

// DiskChanged declares that the blob behind the disk representation was written
// outside this volume, making disk authoritative.
func (v *Volume) DiskChanged() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.cache.InvalidateAllExcept(KindDisk); err != nil {
		return err
	}
	log.Info(log.CatCache, "disk representation changed externally", "family", Family)
	return nil
}

// Sync checks whether the blob behind the disk representation was rewritten by
// someone else and, if so, makes disk authoritative. It reports whether it did.
func (v *Volume) Sync(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rep, ok := v.cache.Peek(KindDisk)
	if !ok {
		return false, nil
	}
	d, err := as[*Disk](rep)
	if err != nil {
		return false, err
	}
	changed, err := d.Changed(ctx)
	if err != nil || !changed {
		return false, err
	}
	if err := v.cache.InvalidateAllExcept(KindDisk); err != nil {
		return false, err
	}
	log.Info(log.CatCache, "disk representation changed externally", "family", Family, "key", d.Key())
	return true, nil
}

// Follow calls Sync on every signal from changes until ctx is done or changes
// is closed. Typically changes comes from a watcher on the store file.
func (v *Volume) Follow(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if _, err := v.Sync(ctx); err != nil {
				log.ErrorErr(log.CatCache, "sync after store change", err, "family", Family)
			}
		}
	}
}

// KindState describes one held representation.
type KindState struct {
	Kind          representation.Kind
	Stale         bool
	Authoritative bool
}

// State lists the held representations in kind order.
func (v *Volume) State() []KindState {
	v.mu.Lock()
	defer v.mu.Unlock()
	auth, _ := v.cache.AuthoritativeKind()
	var out []KindState
	for _, k := range v.cache.Kinds() {
		out = append(out, KindState{Kind: k, Stale: v.cache.IsStale(k), Authoritative: k == auth})
	}
	return out
}

// Clone deep-copies the volume, including device textures and stored blobs.
func (v *Volume) Clone() (*Volume, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, err := v.cache.Clone()
	if err != nil {
		return nil, err
	}
	return &Volume{cache: c}, nil
}

// Close frees device memory held by the volume. Stored blobs are kept.
// The volume must not be used afterwards.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rep, ok := v.cache.Peek(KindGPU)
	if !ok {
		return nil
	}
	g, err := as[*GPU](rep)
	if err != nil {
		return err
	}
	return g.Free()
}

// peekAs returns the held instance of kind when it has type T.
func peekAs[T representation.Representation](c *repcache.Cache, kind representation.Kind) (T, bool) {
	rep, ok := c.Peek(kind)
	if !ok {
		var zero T
		return zero, false
	}
	t, err := as[T](rep)
	return t, err == nil
}
