package volume

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/gpu"
	"github.com/zjrosen/datarep/internal/infrastructure/sqlite"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/representation"
	"github.com/zjrosen/datarep/internal/testutil"
)

type env struct {
	scope  *registry.Scope
	device *gpu.MemoryDevice
	blobs  *sqlite.BlobRepository
}

func newEnv(t *testing.T, m func(*Module)) *env {
	t.Helper()
	e := &env{device: gpu.NewMemoryDevice(), blobs: testutil.NewTestStore(t).Blobs(), scope: registry.NewIsolatedScope()}
	mod := Module{Device: e.device, Store: e.blobs}
	if m != nil {
		m(&mod)
	}

	pair := registry.NewPair(Family)
	hs := mod.Register(pair)
	hs = append(hs, e.scope.RegisterLocal(Family, pair))
	t.Cleanup(hs.Release)
	return e
}

func (e *env) volume(t *testing.T, f format.Descriptor, opts ...Option) *Volume {
	t.Helper()
	v, err := New(e.scope, f, []int{2, 2, 2}, opts...)
	require.NoError(t, err)
	return v
}

func ramValues(t *testing.T, v *Volume) []float64 {
	t.Helper()
	r, err := v.RAM(context.Background())
	require.NoError(t, err)
	return append([]float64(nil), r.Data()...)
}

func TestNew_Validates(t *testing.T) {
	e := newEnv(t, nil)

	_, err := New(e.scope, format.Float32, []int{2, 2})
	require.ErrorContains(t, err, "3 dimensions")

	_, err = New(e.scope, format.Float32, []int{2, 0, 2})
	require.ErrorContains(t, err, "positive")

	_, err = New(e.scope, format.Descriptor{}, []int{1, 1, 1})
	require.ErrorIs(t, err, format.ErrUnknownFormat)
}

func TestVolume_FreshRAMIsZero(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)

	require.Equal(t, make([]float64, 8), ramValues(t, v))
	require.Equal(t, []KindState{{Kind: KindRAM, Authoritative: true}}, v.State())
}

func TestVolume_RAMIndexing(t *testing.T) {
	e := newEnv(t, nil)
	v, err := New(e.scope, format.Vec3Float32, []int{4, 3, 2})
	require.NoError(t, err)

	r, err := v.EditableRAM(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Data(), 4*3*2*3)

	r.Set(3, 2, 1, 2, 7)
	require.Equal(t, 7.0, r.At(3, 2, 1, 2))
	require.Equal(t, 7.0, r.Data()[len(r.Data())-1])

	r.Fill(1)
	require.Equal(t, 1.0, r.At(0, 0, 0, 0))
}

func TestVolume_GPUUploadAndRefresh(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)
	ctx := context.Background()

	r, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	r.Fill(0.1)

	g, err := v.GPU(ctx)
	require.NoError(t, err)
	data, err := g.Download(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(float32(0.1)), data[0])
	require.Equal(t, uint64(1), e.device.Stats().Uploads)

	r, err = v.EditableRAM(ctx)
	require.NoError(t, err)
	r.Fill(2)

	g2, err := v.GPU(ctx)
	require.NoError(t, err)
	require.Equal(t, g.Texture(), g2.Texture(), "stale texture is refreshed in place")
	require.Equal(t, uint64(1), e.device.Stats().Writes)

	data, err = g2.Download(ctx)
	require.NoError(t, err)
	require.Equal(t, 2.0, data[7])
}

func TestVolume_GPUWriteFlowsBackToRAM(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)
	ctx := context.Background()

	err := v.Write(ctx, KindGPU, func(rep representation.Representation) error {
		g := rep.(*GPU)
		return e.device.Write(ctx, g.Texture(), []float32{1, 2, 3, 4, 5, 6, 7, 8})
	})
	require.NoError(t, err)

	require.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, ramValues(t, v))
}

func TestVolume_SaveAndOpen(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.UInt8)
	ctx := context.Background()

	r, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	copy(r.Data(), []float64{0, 1.4, 2.6, 255, 300, -3, 7, 8})

	key, err := v.Save(ctx)
	require.NoError(t, err)
	loc, ok := v.Location()
	require.True(t, ok)
	require.Equal(t, key, loc)

	blob, err := e.blobs.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "UINT8", blob.Format)
	require.Len(t, blob.Data, 8)

	opened, err := Open(ctx, e.scope, key, format.UInt8, []int{2, 2, 2})
	require.NoError(t, err)
	require.Equal(t, []KindState{{Kind: KindDisk, Authoritative: true}}, opened.State())
	require.Equal(t, []float64{0, 1, 3, 255, 255, 0, 7, 8}, ramValues(t, opened))
}

func TestVolume_SaveRewritesSameBlob(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float64)
	ctx := context.Background()

	_, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	key, err := v.Save(ctx)
	require.NoError(t, err)

	r, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	r.Fill(4.5)
	again, err := v.Save(ctx)
	require.NoError(t, err)
	require.Equal(t, key, again)

	infos, err := e.blobs.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	opened, err := Open(ctx, e.scope, key, format.Float64, []int{2, 2, 2})
	require.NoError(t, err)
	require.Equal(t, 4.5, ramValues(t, opened)[3])
}

func TestVolume_OpenMissingBlobIsDeferred(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	v, err := Open(ctx, e.scope, "volume/missing", format.Float32, []int{2, 2, 2})
	require.NoError(t, err, "open must not read the blob")

	_, err = v.RAM(ctx)
	require.ErrorIs(t, err, representation.ErrConversionFailed)
	require.ErrorIs(t, err, sqlite.ErrBlobNotFound)
	require.False(t, errors.Is(err, representation.ErrNoPath))
	require.Len(t, v.State(), 1)
}

func TestVolume_OpenRejectsMismatchedLayout(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, e.blobs.Put(ctx, &sqlite.Blob{Key: "k", Format: "UINT8", Dims: []int{1, 1, 1}, Data: []byte{1}}))

	v, err := Open(ctx, e.scope, "k", format.Float32, []int{1, 1, 1})
	require.NoError(t, err)
	_, err = v.RAM(ctx)
	require.ErrorContains(t, err, "holds UINT8")
}

func TestVolume_DiskChanged(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.UInt8)
	ctx := context.Background()

	_, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	key, err := v.Save(ctx)
	require.NoError(t, err)
	before, err := v.RAM(ctx)
	require.NoError(t, err)

	require.NoError(t, e.blobs.Put(ctx, &sqlite.Blob{
		Key: key, Format: "UINT8", Dims: []int{2, 2, 2}, Data: []byte{9, 9, 9, 9, 9, 9, 9, 9},
	}))
	require.NoError(t, v.DiskChanged())

	after, err := v.RAM(ctx)
	require.NoError(t, err)
	require.Same(t, before, after, "ram is refreshed in place")
	require.Equal(t, 9.0, after.Data()[0])
}

func TestVolume_DiskChangedWithoutDisk(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.UInt8)
	_, err := v.RAM(context.Background())
	require.NoError(t, err)

	require.Error(t, v.DiskChanged())
}

func TestVolume_CloneIsIndependent(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)
	ctx := context.Background()

	r, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	r.Fill(1)
	_, err = v.GPU(ctx)
	require.NoError(t, err)
	_, err = v.Save(ctx)
	require.NoError(t, err)

	dup, err := v.Clone()
	require.NoError(t, err)
	require.Equal(t, 2, e.device.Stats().Textures)

	dr, err := dup.EditableRAM(ctx)
	require.NoError(t, err)
	dr.Fill(5)
	dupKey, err := dup.Save(ctx)
	require.NoError(t, err)
	origKey, _ := v.Location()
	require.NotEqual(t, origKey, dupKey)

	require.Equal(t, 1.0, ramValues(t, v)[0])
	g, err := v.GPU(ctx)
	require.NoError(t, err)
	data, err := g.Download(ctx)
	require.NoError(t, err)
	require.Equal(t, 1.0, data[0])
}

func TestVolume_CloseFreesTexture(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)

	require.NoError(t, v.Close(), "closing without a texture is a no-op")
	_, err := v.GPU(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, e.device.Stats().Textures)

	require.NoError(t, v.Close())
	require.Zero(t, e.device.Stats().Textures)
}

func TestModule_WithoutDevice(t *testing.T) {
	e := newEnv(t, func(m *Module) { m.Device = nil })
	ctx := context.Background()

	empty := e.volume(t, format.Float32)
	_, err := empty.GPU(ctx)
	require.ErrorIs(t, err, representation.ErrNoSuchCreator)

	v := e.volume(t, format.Float32)
	_, err = v.RAM(ctx)
	require.NoError(t, err)
	_, err = v.GPU(ctx)
	require.ErrorIs(t, err, representation.ErrNoPath)
}

func TestModule_ReleaseRemovesKinds(t *testing.T) {
	pair := registry.NewPair(Family)
	hs := Module{Device: gpu.NewMemoryDevice()}.Register(pair)
	require.Equal(t, []representation.Kind{KindGPU, KindRAM}, pair.Creators.Kinds())
	require.Len(t, pair.Conversions.Rules(), 2)

	hs.Release()
	require.Empty(t, pair.Creators.Kinds())
	require.Empty(t, pair.Conversions.Rules())
}

func TestVolume_ConcurrentAccess(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float64)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = v.Write(ctx, KindRAM, func(rep representation.Representation) error {
					rep.(*RAM).Fill(float64(i))
					return nil
				})
				return
			}
			_ = v.Read(ctx, KindGPU, func(representation.Representation) error { return nil })
		}(i)
	}
	wg.Wait()

	values := ramValues(t, v)
	for _, x := range values {
		require.Equal(t, values[0], x)
	}
}

func TestVolume_SyncIgnoresOwnWrites(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)
	ctx := context.Background()

	_, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	_, err = v.Save(ctx)
	require.NoError(t, err)

	// A write after our own save must survive a sync.
	r, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	r.Fill(3)

	changed, err := v.Sync(ctx)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 3.0, ramValues(t, v)[0])
}

func TestVolume_SyncPicksUpExternalWrite(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.UInt8)
	ctx := context.Background()

	_, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	key, err := v.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, e.blobs.Put(ctx, &sqlite.Blob{
		Key: key, Format: "UINT8", Dims: []int{2, 2, 2}, Data: []byte{4, 4, 4, 4, 4, 4, 4, 4},
	}))

	changed, err := v.Sync(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 4.0, ramValues(t, v)[0])

	changed, err = v.Sync(ctx)
	require.NoError(t, err)
	require.False(t, changed, "version was recorded by the reload")
}

func TestVolume_FollowStopsOnClose(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.UInt8)
	ctx := context.Background()

	_, err := v.EditableRAM(ctx)
	require.NoError(t, err)
	key, err := v.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, e.blobs.Put(ctx, &sqlite.Blob{
		Key: key, Format: "UINT8", Dims: []int{2, 2, 2}, Data: make([]byte, 8),
	}))

	changes := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		v.Follow(ctx, changes)
		close(done)
	}()
	changes <- struct{}{}
	close(changes)
	<-done

	state := v.State()
	require.Equal(t, KindDisk, authoritative(state))
}

func authoritative(states []KindState) representation.Kind {
	for _, s := range states {
		if s.Authoritative {
			return s.Kind
		}
	}
	return representation.NoSource
}

func TestVolume_SaveFreshVolumeWritesBlob(t *testing.T) {
	e := newEnv(t, nil)
	v := e.volume(t, format.Float32)
	ctx := context.Background()

	key, err := v.Save(ctx)
	require.NoError(t, err)
	_, err = e.blobs.Get(ctx, key)
	require.NoError(t, err)

	opened, err := Open(ctx, e.scope, key, format.Float32, []int{2, 2, 2})
	require.NoError(t, err)
	require.Equal(t, make([]float64, 8), ramValues(t, opened))
}

func TestVolume_FailedCloneLeavesNothingBehind(t *testing.T) {
	device := gpu.NewMemoryDevice(gpu.WithMaxTextures(1))
	e := newEnv(t, func(m *Module) { m.Device = device })
	ctx := context.Background()

	// Map iteration order decides which copies exist when the gpu copy fails.
	for i := 0; i < 20; i++ {
		v := e.volume(t, format.Float32)
		r, err := v.EditableRAM(ctx)
		require.NoError(t, err)
		r.Fill(2)
		_, err = v.Save(ctx)
		require.NoError(t, err)
		_, err = v.GPU(ctx)
		require.NoError(t, err)

		before, err := e.blobs.List(ctx)
		require.NoError(t, err)

		_, err = v.Clone()
		require.ErrorIs(t, err, gpu.ErrDeviceFull)

		after, err := e.blobs.List(ctx)
		require.NoError(t, err)
		require.Len(t, after, len(before))
		require.Equal(t, 1, device.Stats().Textures)
		require.NoError(t, v.Close())
	}
}

func TestVolume_ForeignDiskCreatorDoesNotPanic(t *testing.T) {
	blobs := testutil.NewTestStore(t).Blobs()
	scope := registry.NewIsolatedScope()
	pair := registry.NewPair(Family)
	hs := Module{Store: blobs}.Register(pair)
	hs = append(hs,
		pair.Creators.Register(representation.NewCreator(KindDisk, func(_ context.Context, f format.Descriptor, _ representation.Params) (representation.Representation, error) {
			return testutil.NewRep(KindDisk, f), nil
		})),
		scope.RegisterLocal(Family, pair),
	)
	t.Cleanup(hs.Release)
	ctx := context.Background()

	v, err := Open(ctx, scope, "volume/elsewhere", format.Float32, []int{1, 1, 1})
	require.NoError(t, err)

	_, ok := v.Location()
	require.False(t, ok)
	_, err = v.Sync(ctx)
	require.ErrorContains(t, err, "want *volume.Disk")
	_, err = v.Save(ctx)
	require.ErrorContains(t, err, "want *volume.Disk")
}
