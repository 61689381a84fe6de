package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/representation"
)

// Family is a built test family registered on an isolated scope.
type Family struct {
	Name    representation.Family
	Pair    *registry.Pair
	Scope   *registry.Scope
	Counter *Counter
	Handles representation.Handles
}

// FamilyBuilder accumulates creators and rules and registers them on Build.
type FamilyBuilder struct {
	t        *testing.T
	name     representation.Family
	opts     []representation.ConversionOption
	creators map[string]creatorSpec
	order    []string
	rules    []ruleSpec
}

// NewFamily starts a test family.
func NewFamily(t *testing.T, name string) *FamilyBuilder {
	t.Helper()
	return &FamilyBuilder{
		t:        t,
		name:     representation.Family(name),
		creators: make(map[string]creatorSpec),
	}
}

// WithConversionOptions passes opts to the family's conversion registry.
func (b *FamilyBuilder) WithConversionOptions(opts ...representation.ConversionOption) *FamilyBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// WithCreator registers a creator for kind producing Params.Elements() values.
func (b *FamilyBuilder) WithCreator(kind string, opts ...CreatorOption) *FamilyBuilder {
	var spec creatorSpec
	for _, opt := range opts {
		opt(&spec)
	}
	if _, ok := b.creators[kind]; !ok {
		b.order = append(b.order, kind)
	}
	b.creators[kind] = spec
	return b
}

// WithRule registers a from->to rule. Use "" as from for a source-less rule.
func (b *FamilyBuilder) WithRule(from, to string, opts ...RuleOption) *FamilyBuilder {
	spec := ruleSpec{from: from, to: to, scale: 1}
	for _, opt := range opts {
		opt(&spec)
	}
	b.rules = append(b.rules, spec)
	return b
}

// Build registers everything on a fresh pair installed locally on an isolated
// scope. Registrations are released when the test ends.
func (b *FamilyBuilder) Build() *Family {
	b.t.Helper()

	f := &Family{
		Name:    b.name,
		Pair:    registry.NewPair(b.name, b.opts...),
		Scope:   registry.NewIsolatedScope(),
		Counter: newCounter(),
	}
	f.Handles = append(f.Handles, f.Scope.RegisterLocal(b.name, f.Pair))
	for _, kind := range b.order {
		f.Handles = append(f.Handles, f.Pair.Creators.Register(f.creator(kind, b.creators[kind])))
	}
	for _, spec := range b.rules {
		f.Handles = append(f.Handles, f.Pair.Conversions.Register(f.rule(spec)))
	}
	b.t.Cleanup(f.Handles.Release)
	return f
}

func (f *Family) creator(kind string, spec creatorSpec) representation.Creator {
	k := representation.Kind(kind)
	return representation.NewCreator(k, func(_ context.Context, fd format.Descriptor, p representation.Params) (representation.Representation, error) {
		f.Counter.inc("create:" + kind)
		if spec.err != nil {
			return nil, spec.err
		}
		values := make([]float64, p.Elements())
		for i := range values {
			values[i] = spec.fill
		}
		return NewRep(k, fd, values...), nil
	})
}

func (f *Family) rule(spec ruleSpec) representation.Rule {
	from, to := representation.Kind(spec.from), representation.Kind(spec.to)
	name := representation.RuleName(from, to)

	transform := func(src representation.Representation) ([]float64, format.Descriptor, error) {
		if spec.err != nil {
			return nil, format.Descriptor{}, spec.err
		}
		if src == nil {
			return nil, format.Float64, nil
		}
		in, ok := src.(*Rep)
		if !ok {
			return nil, format.Descriptor{}, fmt.Errorf("testutil: %s got %T", name, src)
		}
		out := make([]float64, len(in.Values))
		for i, v := range in.Values {
			out[i] = v*spec.scale + spec.offset
		}
		return out, in.Format(), nil
	}

	convert := func(_ context.Context, src representation.Representation) (representation.Representation, error) {
		f.Counter.inc("convert:" + name)
		values, fd, err := transform(src)
		if err != nil {
			return nil, err
		}
		return NewRep(to, fd, values...), nil
	}
	if !spec.inPlace {
		return representation.NewRule(from, to, convert)
	}

	update := func(_ context.Context, src, dst representation.Representation) error {
		f.Counter.inc("update:" + name)
		values, _, err := transform(src)
		if err != nil {
			return err
		}
		target := dst.(*Rep)
		target.Values = append(target.Values[:0], values...)
		return nil
	}
	return representation.NewUpdatingRule(from, to, convert, update)
}
