package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/infrastructure/sqlite"
)

func TestNewTestStore_IsEmptyAndWritable(t *testing.T) {
	db := NewTestStore(t)
	ctx := context.Background()

	infos, err := db.Blobs().List(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)

	blob := &sqlite.Blob{Key: "k", Format: format.MustLookup(format.Float, 1, 32).Name(), Dims: []int{1}, Data: []byte{0, 0, 0, 0}}
	require.NoError(t, db.Blobs().Put(ctx, blob))
	require.EqualValues(t, 1, blob.Version)
}

func TestNewTestStore_Isolated(t *testing.T) {
	a := NewTestStore(t)
	b := NewTestStore(t)
	require.NotEqual(t, a.Path(), b.Path())
}
