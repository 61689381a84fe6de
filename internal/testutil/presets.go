package testutil

import "testing"

// Kinds used by the preset families.
const (
	Disk = "disk"
	RAM  = "ram"
	GPU  = "gpu"
)

// TwoHop builds a disk/ram/gpu family with creators for every kind and only the
// rules disk->ram and ram->gpu.
func TwoHop(t *testing.T) *Family {
	t.Helper()
	return NewFamily(t, "twohop").
		WithCreator(Disk, FillWith(1)).
		WithCreator(RAM).
		WithCreator(GPU).
		WithRule(Disk, RAM).
		WithRule(RAM, GPU).
		Build()
}

// RoundTrip builds a disk/ram/gpu family where every neighbouring pair converts
// both ways. gpu rules refresh in place.
func RoundTrip(t *testing.T) *Family {
	t.Helper()
	return NewFamily(t, "roundtrip").
		WithCreator(Disk).
		WithCreator(RAM).
		WithCreator(GPU).
		WithRule(Disk, RAM).
		WithRule(RAM, Disk).
		WithRule(RAM, GPU, InPlace()).
		WithRule(GPU, RAM, InPlace()).
		Build()
}
