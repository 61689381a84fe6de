// Package registry maps family tags to their creator and conversion registries.
//
// A Directory is the process-wide table filled by modules at startup. A Scope is
// the single entry point data objects use: it prefers registries installed
// locally on the scope and otherwise falls back to a directory.
package registry

import (
	"github.com/zjrosen/datarep/internal/representation"
)

// Pair is the creator and conversion registry of one family.
type Pair struct {
	Creators    *representation.CreatorRegistry
	Conversions *representation.ConversionRegistry
}

// NewPair creates empty registries for family.
func NewPair(family representation.Family, opts ...representation.ConversionOption) *Pair {
	return &Pair{
		Creators:    representation.NewCreatorRegistry(family),
		Conversions: representation.NewConversionRegistry(family, opts...),
	}
}

// Family returns the family served by the pair.
func (p *Pair) Family() representation.Family {
	return p.Creators.Family()
}
