// Package repcache holds the representations of one data object and keeps them
// coherent. Exactly one held kind is authoritative; a write through GetMut
// marks every other kind stale, and stale kinds are refreshed from the
// authoritative one the next time they are requested.
//
// A Cache is not safe for concurrent use. Get mutates internal state, so owners
// must serialise access (see volume.Volume).
package repcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/pubsub"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/representation"
)

// Change is the payload published when the cache's contents change.
type Change struct {
	Family representation.Family
	// Kind is the created kind for CreatedEvent, the new authoritative kind otherwise.
	Kind representation.Kind
	// Previous is the authoritative kind before an AuthoritativeEvent.
	Previous representation.Kind
	// Stale lists kinds newly marked stale by an InvalidatedEvent.
	Stale []representation.Kind
}

// Option configures a Cache.
type Option func(*Cache)

// WithPublisher publishes Change events to p.
func WithPublisher(p pubsub.Publisher[Change]) Option {
	return func(c *Cache) {
		c.publisher = p
	}
}

// Cache is the owning container of one data object's representations.
type Cache struct {
	scope  *registry.Scope
	family representation.Family
	format format.Descriptor
	params representation.Params

	instances     map[representation.Kind]representation.Representation
	stale         map[representation.Kind]bool
	authoritative representation.Kind

	publisher pubsub.Publisher[Change]
}

// New creates an empty cache. Representations are created with f and params
// through the registries scope resolves for family.
func New(scope *registry.Scope, family representation.Family, f format.Descriptor, params representation.Params, opts ...Option) *Cache {
	c := &Cache{
		scope:     scope,
		family:    family,
		format:    f,
		params:    params.Clone(),
		instances: make(map[representation.Kind]representation.Representation),
		stale:     make(map[representation.Kind]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Family() representation.Family { return c.family }
func (c *Cache) Format() format.Descriptor     { return c.format }
func (c *Cache) Params() representation.Params { return c.params.Clone() }

// Has reports whether an instance of kind is held, stale or not.
func (c *Cache) Has(kind representation.Kind) bool {
	_, ok := c.instances[kind]
	return ok
}

// Peek returns the held instance of kind without refreshing it, even when stale.
func (c *Cache) Peek(kind representation.Kind) (representation.Representation, bool) {
	rep, ok := c.instances[kind]
	return rep, ok
}

// IsStale reports whether the held instance of kind is stale.
func (c *Cache) IsStale(kind representation.Kind) bool {
	return c.stale[kind]
}

// AuthoritativeKind returns the authoritative kind, or false for an empty cache.
func (c *Cache) AuthoritativeKind() (representation.Kind, bool) {
	return c.authoritative, c.authoritative != representation.NoSource
}

// Kinds returns the held kinds, sorted.
func (c *Cache) Kinds() []representation.Kind {
	kinds := make([]representation.Kind, 0, len(c.instances))
	for k := range c.instances {
		kinds = append(kinds, k)
	}
	return representation.SortKinds(kinds)
}

// Empty reports whether the cache holds no instances.
func (c *Cache) Empty() bool { return len(c.instances) == 0 }

// Get returns an up-to-date instance of kind, creating or converting it as needed.
// Derived instances do not become authoritative. On failure the cache is unchanged.
func (c *Cache) Get(ctx context.Context, kind representation.Kind) (representation.Representation, error) {
	return c.acquire(ctx, OpGet, kind)
}

// GetMut returns an up-to-date instance of kind for writing. Every other held
// kind becomes stale and kind becomes authoritative.
func (c *Cache) GetMut(ctx context.Context, kind representation.Kind) (representation.Representation, error) {
	rep, err := c.acquire(ctx, OpGetMut, kind)
	if err != nil {
		return nil, err
	}
	c.invalidateAllExcept(kind)
	return rep, nil
}

// InvalidateAllExcept declares kind authoritative after it was written outside GetMut.
func (c *Cache) InvalidateAllExcept(kind representation.Kind) error {
	if !c.Has(kind) {
		return c.fail(OpInvalidate, kind, ErrNotPresent)
	}
	c.invalidateAllExcept(kind)
	return nil
}

// Adopt installs rep as the authoritative instance of its kind, replacing any held
// instance of that kind and marking the others stale. Loaders use it to attach a
// representation they constructed themselves.
func (c *Cache) Adopt(rep representation.Representation) {
	kind := rep.Kind()
	_, existed := c.instances[kind]
	c.instances[kind] = rep
	delete(c.stale, kind)
	if !existed {
		c.publish(pubsub.CreatedEvent, Change{Family: c.family, Kind: kind})
	}
	c.invalidateAllExcept(kind)
	log.Debug(log.CatCache, "representation adopted", "family", c.family, "kind", kind)
}

// Clone deep-copies every held instance, preserving authoritative and stale state.
// The copy shares the scope and publisher.
func (c *Cache) Clone() (*Cache, error) {
	out := &Cache{
		scope:         c.scope,
		family:        c.family,
		format:        c.format,
		params:        c.params.Clone(),
		instances:     make(map[representation.Kind]representation.Representation, len(c.instances)),
		stale:         make(map[representation.Kind]bool, len(c.stale)),
		authoritative: c.authoritative,
		publisher:     c.publisher,
	}
	for kind, rep := range c.instances {
		dup, err := rep.Clone()
		if err != nil {
			out.discard()
			return nil, c.fail(OpClone, kind, err)
		}
		out.instances[kind] = dup
	}
	for kind, stale := range c.stale {
		out.stale[kind] = stale
	}
	return out, nil
}

// discard frees every held instance of a cache that is being abandoned.
func (c *Cache) discard() {
	for _, kind := range c.Kinds() {
		if err := representation.Discard(c.instances[kind]); err != nil {
			log.Warn(log.CatCache, "discard failed", "family", c.family, "kind", kind, "error", err)
		}
		delete(c.instances, kind)
	}
}

func (c *Cache) acquire(ctx context.Context, op Op, kind representation.Kind) (representation.Representation, error) {
	if rep, ok := c.instances[kind]; ok && !c.stale[kind] {
		log.Debug(log.CatCache, "hit", "family", c.family, "kind", kind)
		return rep, nil
	}

	pair := c.scope.Registries(c.family)
	if len(c.instances) == 0 {
		return c.bootstrap(ctx, op, pair, kind)
	}
	return c.convert(ctx, op, pair, kind)
}

// bootstrap creates the first instance of an empty cache. A registered creator is
// preferred; otherwise a chain starting from a source-less rule is used.
func (c *Cache) bootstrap(ctx context.Context, op Op, pair *registry.Pair, kind representation.Kind) (representation.Representation, error) {
	rep, err := pair.Creators.Create(ctx, kind, c.format, c.params.Clone())
	if err == nil {
		c.instances[kind] = rep
		c.publish(pubsub.CreatedEvent, Change{Family: c.family, Kind: kind})
		c.setAuthoritative(kind)
		log.Debug(log.CatCache, "created default", "family", c.family, "kind", kind)
		return rep, nil
	}
	if !errors.Is(err, representation.ErrNoSuchCreator) {
		return nil, c.fail(op, kind, err)
	}

	path, ok := pair.Conversions.Resolve(nil, kind)
	if !ok {
		return nil, c.fail(op, kind, err)
	}
	outputs, xerr := pair.Conversions.Execute(ctx, path, nil, nil)
	if xerr != nil {
		return nil, c.fail(op, kind, xerr)
	}
	c.commit(outputs)
	c.setAuthoritative(kind)
	log.Debug(log.CatCache, "initialized from source-less rule", "family", c.family, "kind", kind, "path", path)
	return c.instances[kind], nil
}

func (c *Cache) convert(ctx context.Context, op Op, pair *registry.Pair, kind representation.Kind) (representation.Representation, error) {
	available := c.available(kind)
	path, ok := pair.Conversions.Resolve(available, kind)
	if !ok {
		return nil, c.fail(op, kind, &representation.NoPathError{Family: c.family, From: available, To: kind})
	}

	// Stale instances along the path are refreshed in place where the rule allows it.
	reuse := make(map[representation.Kind]representation.Representation)
	for _, rule := range path {
		if c.stale[rule.Target()] {
			reuse[rule.Target()] = c.instances[rule.Target()]
		}
	}

	outputs, err := pair.Conversions.Execute(ctx, path, c.instances[path.Source()], reuse)
	if err != nil {
		return nil, c.fail(op, kind, err)
	}
	c.commit(outputs)
	log.Debug(log.CatCache, "converted", "family", c.family, "kind", kind, "path", path)
	return c.instances[kind], nil
}

// available lists the kinds a conversion may start from: the authoritative kind
// first, then every other up-to-date kind in sorted order.
func (c *Cache) available(target representation.Kind) []representation.Kind {
	kinds := []representation.Kind{c.authoritative}
	for _, k := range c.Kinds() {
		if k == c.authoritative || k == target || c.stale[k] {
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

func (c *Cache) commit(outputs []representation.Representation) {
	for _, rep := range outputs {
		kind := rep.Kind()
		_, existed := c.instances[kind]
		c.instances[kind] = rep
		delete(c.stale, kind)
		if !existed {
			c.publish(pubsub.CreatedEvent, Change{Family: c.family, Kind: kind})
		}
	}
}

func (c *Cache) invalidateAllExcept(kind representation.Kind) {
	var newlyStale []representation.Kind
	for _, k := range c.Kinds() {
		if k == kind || c.stale[k] {
			continue
		}
		c.stale[k] = true
		newlyStale = append(newlyStale, k)
	}
	delete(c.stale, kind)
	if len(newlyStale) > 0 {
		c.publish(pubsub.InvalidatedEvent, Change{Family: c.family, Kind: kind, Stale: newlyStale})
		log.Debug(log.CatCache, "invalidated", "family", c.family, "authoritative", kind, "stale", representation.JoinKinds(newlyStale))
	}
	c.setAuthoritative(kind)
}

func (c *Cache) setAuthoritative(kind representation.Kind) {
	prev := c.authoritative
	if prev == kind {
		return
	}
	c.authoritative = kind
	c.publish(pubsub.AuthoritativeEvent, Change{Family: c.family, Kind: kind, Previous: prev})
}

func (c *Cache) fail(op Op, kind representation.Kind, err error) error {
	e := &Error{
		Op:            op,
		Family:        c.family,
		Requested:     kind,
		Authoritative: c.authoritative,
		Err:           err,
	}
	log.ErrorErr(log.CatCache, "representation unavailable", err,
		"op", op, "family", c.family, "requested", kind, "authoritative", c.authoritative, "rule", e.Rule())
	return e
}

func (c *Cache) publish(t pubsub.EventType, change Change) {
	if c.publisher != nil {
		c.publisher.Publish(t, change)
	}
}

// GetAs is Get followed by a type assertion to the concrete representation type.
func GetAs[T representation.Representation](ctx context.Context, c *Cache, kind representation.Kind) (T, error) {
	rep, err := c.Get(ctx, kind)
	if err != nil {
		var zero T
		return zero, err
	}
	return assertAs[T](c, kind, rep)
}

// GetMutAs is GetMut followed by a type assertion to the concrete representation type.
func GetMutAs[T representation.Representation](ctx context.Context, c *Cache, kind representation.Kind) (T, error) {
	rep, err := c.GetMut(ctx, kind)
	if err != nil {
		var zero T
		return zero, err
	}
	return assertAs[T](c, kind, rep)
}

func assertAs[T representation.Representation](c *Cache, kind representation.Kind, rep representation.Representation) (T, error) {
	t, ok := rep.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("repcache %s/%s: held %T, want %T", c.family, kind, rep, zero)
	}
	return t, nil
}
