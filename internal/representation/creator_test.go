package representation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/datarep/internal/format"
)

func constCreator(kind Kind, value int) Creator {
	return NewCreator(kind, func(_ context.Context, f format.Descriptor, _ Params) (Representation, error) {
		return &testRep{kind: kind, f: f, value: value}, nil
	})
}

func TestCreatorRegistry_CreateRegistered(t *testing.T) {
	r := NewCreatorRegistry("volume")
	h := r.Register(constCreator("ram", 7))
	defer h.Release()

	rep, err := r.Create(context.Background(), "ram", format.UInt8, Params{Dims: []int{2, 2}})
	require.NoError(t, err)
	require.Equal(t, Kind("ram"), rep.Kind())
	require.Equal(t, format.UInt8, rep.Format())
	require.Equal(t, 7, rep.(*testRep).value)
	require.True(t, r.Has("ram"))
	require.Equal(t, []Kind{"ram"}, r.Kinds())
	require.Equal(t, Family("volume"), r.Family())
}

func TestCreatorRegistry_MissingKind(t *testing.T) {
	r := NewCreatorRegistry("volume")

	_, err := r.Create(context.Background(), "gpu", format.Float32, Params{})
	require.ErrorIs(t, err, ErrNoSuchCreator)

	var nsc *NoSuchCreatorError
	require.True(t, errors.As(err, &nsc))
	require.Equal(t, Kind("gpu"), nsc.Kind)
	require.Equal(t, Family("volume"), nsc.Family)
}

func TestCreatorRegistry_LastRegistrationWins(t *testing.T) {
	r := NewCreatorRegistry("volume")
	first := r.Register(constCreator("ram", 1))
	second := r.Register(constCreator("ram", 2))

	rep, err := r.Create(context.Background(), "ram", format.Float32, Params{})
	require.NoError(t, err)
	require.Equal(t, 2, rep.(*testRep).value)

	// The replaced handle no longer owns the slot.
	first.Release()
	require.True(t, r.Has("ram"))

	second.Release()
	require.False(t, r.Has("ram"))
}

func TestCreatorRegistry_ReleaseRemoves(t *testing.T) {
	r := NewCreatorRegistry("volume")
	h := r.Register(constCreator("ram", 1))
	h.Release()

	_, err := r.Create(context.Background(), "ram", format.Float32, Params{})
	require.ErrorIs(t, err, ErrNoSuchCreator)
}

func TestCreatorRegistry_RejectsInvalidFormat(t *testing.T) {
	r := NewCreatorRegistry("volume")
	defer r.Register(constCreator("ram", 1)).Release()

	_, err := r.Create(context.Background(), "ram", format.Descriptor{}, Params{})
	require.ErrorIs(t, err, format.ErrUnknownFormat)
	require.ErrorIs(t, err, ErrCreateFailed)
}

func TestCreatorRegistry_CreatorErrors(t *testing.T) {
	r := NewCreatorRegistry("volume")
	defer r.Register(NewCreator("ram", func(context.Context, format.Descriptor, Params) (Representation, error) {
		return nil, errors.New("out of memory")
	})).Release()
	defer r.Register(NewCreator("gpu", func(_ context.Context, f format.Descriptor, _ Params) (Representation, error) {
		return &testRep{kind: "ram", f: f}, nil
	})).Release()

	_, err := r.Create(context.Background(), "ram", format.Float32, Params{})
	require.ErrorContains(t, err, "out of memory")
	var cfe *CreateFailedError
	require.True(t, errors.As(err, &cfe))
	require.Equal(t, Kind("ram"), cfe.Kind)
	require.Equal(t, Family("volume"), cfe.Family)
	require.NotErrorIs(t, err, ErrNoSuchCreator)

	_, err = r.Create(context.Background(), "gpu", format.Float32, Params{})
	require.ErrorContains(t, err, "returned kind ram")
}
