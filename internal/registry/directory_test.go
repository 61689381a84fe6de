package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/datarep/internal/representation"
)

func TestDirectory_RegisterAndGet(t *testing.T) {
	d := NewDirectory()
	pair := NewPair("volume")

	h := d.RegisterFamily("volume", pair)
	got, ok := d.Get("volume")
	require.True(t, ok)
	require.Same(t, pair, got)
	require.Equal(t, representation.Family("volume"), got.Family())

	_, ok = d.Get("buffer")
	require.False(t, ok)

	h.Release()
	_, ok = d.Get("volume")
	require.False(t, ok)
}

func TestDirectory_ReplaceKeepsNewest(t *testing.T) {
	d := NewDirectory()
	first := d.RegisterFamily("volume", NewPair("volume"))
	newer := NewPair("volume")
	second := d.RegisterFamily("volume", newer)

	first.Release()
	got, ok := d.Get("volume")
	require.True(t, ok)
	require.Same(t, newer, got)

	second.Release()
	require.Empty(t, d.Families())
}

func TestDirectory_Families(t *testing.T) {
	d := NewDirectory()
	defer d.RegisterFamily("volume", NewPair("volume")).Release()
	defer d.RegisterFamily("buffer", NewPair("buffer")).Release()

	require.Equal(t, []representation.Family{"buffer", "volume"}, d.Families())
}

func TestDirectory_ConcurrentRegistration(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			family := representation.Family(fmt.Sprintf("f%d", i%4))
			h := d.RegisterFamily(family, NewPair(family))
			_, _ = d.Get(family)
			h.Release()
			h.Release()
		}(i)
	}
	wg.Wait()
	require.Empty(t, d.Families())
}

func TestInitShutdown(t *testing.T) {
	dir, err := Init()
	require.NoError(t, err)
	require.NotNil(t, dir)

	_, err = Init()
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	require.NoError(t, Shutdown())
	require.ErrorIs(t, Shutdown(), ErrNotInitialized)
}
