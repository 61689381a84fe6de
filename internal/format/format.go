// Package format describes the scalar/vector layout of one data element:
// component count, bit width and numeric class.
//
// Descriptors are small comparable values. Two descriptors for the same layout
// compare equal with ==, so they can key maps directly. Every supported layout is
// built once at package init and handed out by Lookup, Parse and All.
package format

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// NumericClass is the numeric interpretation of each component.
type NumericClass int

const (
	Float NumericClass = iota
	SignedInteger
	UnsignedInteger
)

func (c NumericClass) String() string {
	switch c {
	case Float:
		return "FLOAT"
	case SignedInteger:
		return "INT"
	case UnsignedInteger:
		return "UINT"
	default:
		return "UNKNOWN"
	}
}

// MaxComponents is the largest supported vector width.
const MaxComponents = 4

// ErrUnknownFormat is returned when a format name or layout cannot be resolved.
var ErrUnknownFormat = errors.New("unknown format")

// UnknownFormatError names the unresolvable format.
type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown format %q", e.Name)
}

func (e *UnknownFormatError) Is(target error) bool {
	return target == ErrUnknownFormat
}

// Descriptor is an immutable element layout. The zero value is invalid.
type Descriptor struct {
	class      NumericClass
	components uint8
	bits       uint8
}

// Class returns the numeric class.
func (d Descriptor) Class() NumericClass { return d.class }

// Components returns the vector width (1-4).
func (d Descriptor) Components() int { return int(d.components) }

// Bits returns the bit width of one component.
func (d Descriptor) Bits() int { return int(d.bits) }

// Size returns the bytes needed by one element (all components).
func (d Descriptor) Size() int { return int(d.components) * int(d.bits) / 8 }

// Valid reports whether d is one of the supported layouts.
func (d Descriptor) Valid() bool {
	_, ok := byLayout[d]
	return ok
}

// Name returns the canonical name, e.g. "FLOAT32" or "Vec3UINT8".
func (d Descriptor) Name() string {
	if !d.Valid() {
		return "INVALID"
	}
	return nameOf(d)
}

func nameOf(d Descriptor) string {
	base := fmt.Sprintf("%s%d", d.class, d.bits)
	if d.components == 1 {
		return base
	}
	return fmt.Sprintf("Vec%d%s", d.components, base)
}

func (d Descriptor) String() string { return d.Name() }

// Range returns the lowest and highest value one component can hold.
func (d Descriptor) Range() (lo, hi float64) {
	switch d.class {
	case UnsignedInteger:
		return 0, math.Exp2(float64(d.bits)) - 1
	case SignedInteger:
		half := math.Exp2(float64(d.bits) - 1)
		return -half, half - 1
	default:
		switch d.bits {
		case 16:
			return -65504, 65504
		case 32:
			return -math.MaxFloat32, math.MaxFloat32
		default:
			return -math.MaxFloat64, math.MaxFloat64
		}
	}
}

var byLayout, byName, all = buildTables()

func buildTables() (map[Descriptor]struct{}, map[string]Descriptor, []Descriptor) {
	layouts := make(map[Descriptor]struct{})
	names := make(map[string]Descriptor)
	var list []Descriptor

	widths := map[NumericClass][]uint8{
		Float:           {16, 32, 64},
		SignedInteger:   {8, 16, 32, 64},
		UnsignedInteger: {8, 16, 32, 64},
	}
	for _, class := range []NumericClass{Float, SignedInteger, UnsignedInteger} {
		for _, bits := range widths[class] {
			for c := uint8(1); c <= MaxComponents; c++ {
				d := Descriptor{class: class, components: c, bits: bits}
				layouts[d] = struct{}{}
				list = append(list, d)
			}
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].components != list[j].components {
			return list[i].components < list[j].components
		}
		if list[i].class != list[j].class {
			return list[i].class < list[j].class
		}
		return list[i].bits < list[j].bits
	})
	for _, d := range list {
		names[strings.ToLower(nameOf(d))] = d
	}
	return layouts, names, list
}

// Lookup returns the descriptor for a layout. ok is false for unsupported layouts
// (components outside 1-4, 8-bit floats, widths other than 8/16/32/64).
func Lookup(class NumericClass, components, bits int) (Descriptor, bool) {
	if components < 1 || components > MaxComponents || bits < 0 || bits > math.MaxUint8 {
		return Descriptor{}, false
	}
	d := Descriptor{class: class, components: uint8(components), bits: uint8(bits)}
	if _, ok := byLayout[d]; !ok {
		return Descriptor{}, false
	}
	return d, true
}

// MustLookup is Lookup for layouts known at compile time. It panics on unsupported layouts.
func MustLookup(class NumericClass, components, bits int) Descriptor {
	d, ok := Lookup(class, components, bits)
	if !ok {
		panic(fmt.Sprintf("format: unsupported layout %s x%d %d-bit", class, components, bits))
	}
	return d
}

// Parse resolves a format name. Matching is case-insensitive, so "Vec3UINT8",
// "vec3uint8" and "VEC3UINT8" all resolve to the same descriptor.
func Parse(name string) (Descriptor, error) {
	d, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, &UnknownFormatError{Name: name}
	}
	return d, nil
}

// All returns every supported descriptor ordered by components, class, then bits.
func All() []Descriptor {
	out := make([]Descriptor, len(all))
	copy(out, all)
	return out
}

// Common descriptors.
var (
	Float32     = MustLookup(Float, 1, 32)
	Float64     = MustLookup(Float, 1, 64)
	UInt8       = MustLookup(UnsignedInteger, 1, 8)
	UInt16      = MustLookup(UnsignedInteger, 1, 16)
	Int16       = MustLookup(SignedInteger, 1, 16)
	Vec3Float32 = MustLookup(Float, 3, 32)
	Vec4UInt8   = MustLookup(UnsignedInteger, 4, 8)
)
