package format

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLookup_EqualDescriptorsCompareEqual(t *testing.T) {
	a, ok := Lookup(UnsignedInteger, 3, 8)
	require.True(t, ok)
	b, ok := Lookup(UnsignedInteger, 3, 8)
	require.True(t, ok)

	require.Equal(t, a, b)
	require.True(t, a == b)

	m := map[Descriptor]string{a: "rgb"}
	require.Equal(t, "rgb", m[b])
}

func TestLookup_Unsupported(t *testing.T) {
	tests := []struct {
		name       string
		class      NumericClass
		components int
		bits       int
	}{
		{"zero components", Float, 0, 32},
		{"five components", Float, 5, 32},
		{"8-bit float", Float, 1, 8},
		{"12-bit int", SignedInteger, 1, 12},
		{"negative bits", UnsignedInteger, 1, -8},
		{"unknown class", NumericClass(9), 1, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Lookup(tt.class, tt.components, tt.bits)
			require.False(t, ok)
		})
	}
}

func TestDescriptor_Accessors(t *testing.T) {
	d := MustLookup(Float, 3, 32)

	require.Equal(t, Float, d.Class())
	require.Equal(t, 3, d.Components())
	require.Equal(t, 32, d.Bits())
	require.Equal(t, 12, d.Size())
	require.True(t, d.Valid())
	require.Equal(t, "Vec3FLOAT32", d.Name())
	require.Equal(t, "Vec3FLOAT32", d.String())
}

func TestDescriptor_ZeroValueInvalid(t *testing.T) {
	var d Descriptor
	require.False(t, d.Valid())
	require.Equal(t, "INVALID", d.Name())
}

func TestDescriptor_Range(t *testing.T) {
	lo, hi := UInt8.Range()
	require.Equal(t, 0.0, lo)
	require.Equal(t, 255.0, hi)

	lo, hi = Int16.Range()
	require.Equal(t, -32768.0, lo)
	require.Equal(t, 32767.0, hi)

	lo, hi = Float32.Range()
	require.Equal(t, -math.MaxFloat32, lo)
	require.Equal(t, math.MaxFloat32, hi)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		want Descriptor
	}{
		{"FLOAT32", Float32},
		{"float32", Float32},
		{"Vec4UINT8", Vec4UInt8},
		{"vec4uint8", Vec4UInt8},
		{" UINT16 ", UInt16},
		{"INT16", Int16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("Vec5FLOAT32")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownFormat))

	var ufe *UnknownFormatError
	require.True(t, errors.As(err, &ufe))
	require.Equal(t, "Vec5FLOAT32", ufe.Name)
}

func TestAll_OrderedAndComplete(t *testing.T) {
	list := All()
	// 3 float widths + 4 signed + 4 unsigned, times 4 component counts
	require.Len(t, list, 44)
	require.Equal(t, 1, list[0].Components())
	require.Equal(t, MaxComponents, list[len(list)-1].Components())

	list[0] = Descriptor{}
	require.True(t, All()[0].Valid(), "All must return a copy")
}

func TestProperty_NameRoundTrip(t *testing.T) {
	all := All()
	rapid.Check(t, func(t *rapid.T) {
		d := rapid.SampledFrom(all).Draw(t, "descriptor")
		parsed, err := Parse(d.Name())
		require.NoError(t, err)
		require.Equal(t, d, parsed)

		looked, ok := Lookup(d.Class(), d.Components(), d.Bits())
		require.True(t, ok)
		require.Equal(t, d, looked)
	})
}
