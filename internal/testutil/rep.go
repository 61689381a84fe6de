// Package testutil provides a counting test family for exercising registries and caches.
package testutil

import (
	"slices"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/representation"
)

// Rep is a test representation holding plain values.
type Rep struct {
	kind   representation.Kind
	format format.Descriptor
	Values []float64
}

// NewRep builds a Rep of kind holding values.
func NewRep(kind representation.Kind, f format.Descriptor, values ...float64) *Rep {
	return &Rep{kind: kind, format: f, Values: values}
}

func (r *Rep) Kind() representation.Kind  { return r.kind }
func (r *Rep) Format() format.Descriptor { return r.format }

func (r *Rep) Clone() (representation.Representation, error) {
	return &Rep{kind: r.kind, format: r.format, Values: slices.Clone(r.Values)}, nil
}
