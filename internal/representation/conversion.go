package representation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/datarep/internal/cachemanager"
	"github.com/zjrosen/datarep/internal/log"
)

// Span attribute keys recorded for every conversion hop.
const (
	AttrFamily     = "repr.family"
	AttrRule       = "repr.rule"
	AttrSourceKind = "repr.source_kind"
	AttrTargetKind = "repr.target_kind"
	AttrHop        = "repr.hop"
)

// SpanPrefixConvert prefixes the span name of each conversion hop.
const SpanPrefixConvert = "convert."

// Path is an ordered chain of rules; each rule's Target is the next rule's Source.
// An empty path means the requested kind is already available.
type Path []Rule

// Source returns the kind the path starts from.
func (p Path) Source() Kind {
	if len(p) == 0 {
		return NoSource
	}
	return p[0].Source()
}

// Target returns the kind the path produces.
func (p Path) Target() Kind {
	if len(p) == 0 {
		return NoSource
	}
	return p[len(p)-1].Target()
}

// Kinds lists every kind the path visits, source first.
func (p Path) Kinds() []Kind {
	if len(p) == 0 {
		return nil
	}
	kinds := []Kind{p[0].Source()}
	for _, r := range p {
		kinds = append(kinds, r.Target())
	}
	return kinds
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<empty>"
	}
	parts := make([]string, 0, len(p)+1)
	for _, k := range p.Kinds() {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, "->")
}

type ruleEntry struct {
	rule Rule
	id   uuid.UUID
}

type resolveInput struct {
	available []Kind
	target    Kind
}

var errUnreachable = errors.New("unreachable")

// ConversionRegistry holds the single-hop rules of one family and resolves
// multi-hop paths by breadth-first search. It is safe for concurrent use.
type ConversionRegistry struct {
	family Family

	mu         sync.RWMutex
	edges      map[Kind][]*ruleEntry
	generation uint64

	paths   *cachemanager.ReadThroughCache[string, Path, resolveInput]
	pathTTL time.Duration
	tracer  trace.Tracer
}

// ConversionOption configures a ConversionRegistry.
type ConversionOption func(*ConversionRegistry)

// WithPathCache memoises resolved paths in cache for ttl. The cache is flushed
// whenever a rule is registered or released.
func WithPathCache(cache cachemanager.CacheManager[string, Path], ttl time.Duration) ConversionOption {
	return func(r *ConversionRegistry) {
		r.paths = cachemanager.NewReadThroughCache(cache, r.resolveUncached, cache == nil)
		r.pathTTL = ttl
	}
}

// WithTracer records a span per executed hop.
func WithTracer(tracer trace.Tracer) ConversionOption {
	return func(r *ConversionRegistry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewConversionRegistry creates an empty registry for family.
func NewConversionRegistry(family Family, opts ...ConversionOption) *ConversionRegistry {
	r := &ConversionRegistry{
		family: family,
		edges:  make(map[Kind][]*ruleEntry),
		tracer: noop.NewTracerProvider().Tracer("datarep"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Family returns the family this registry serves.
func (r *ConversionRegistry) Family() Family { return r.family }

// Register installs rule as the edge Source()->Target(), replacing any earlier rule
// for the same pair.
func (r *ConversionRegistry) Register(rule Rule) *Handle {
	from, to := rule.Source(), rule.Target()
	label := fmt.Sprintf("%s/rule/%s", r.family, RuleName(from, to))

	var h *Handle
	h = NewHandle(label, func() { r.unregister(from, to, h.ID()) })

	r.mu.Lock()
	entry := &ruleEntry{rule: rule, id: h.ID()}
	replaced := false
	edges := r.edges[from]
	for i, e := range edges {
		if e.rule.Target() == to {
			edges[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		r.edges[from] = append(edges, entry)
	}
	r.generation++
	r.mu.Unlock()

	r.invalidatePaths()
	if replaced {
		log.Info(log.CatRegistry, "rule replaced", "family", r.family, "rule", rule.Name(), "handle", h)
	} else {
		log.Debug(log.CatRegistry, "rule registered", "family", r.family, "rule", rule.Name(), "handle", h)
	}
	return h
}

func (r *ConversionRegistry) unregister(from, to Kind, id uuid.UUID) {
	r.mu.Lock()
	edges := r.edges[from]
	removed := false
	for i, e := range edges {
		if e.rule.Target() == to && e.id == id {
			r.edges[from] = append(edges[:i:i], edges[i+1:]...)
			removed = true
			break
		}
	}
	if len(r.edges[from]) == 0 {
		delete(r.edges, from)
	}
	if removed {
		r.generation++
	}
	r.mu.Unlock()

	if removed {
		r.invalidatePaths()
		log.Debug(log.CatRegistry, "rule released", "family", r.family, "rule", RuleName(from, to))
	}
}

func (r *ConversionRegistry) invalidatePaths() {
	if r.paths != nil {
		r.paths.Invalidate(context.Background())
	}
}

// Rules returns every registered rule ordered by source then target.
func (r *ConversionRegistry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []Rule
	for _, edges := range r.edges {
		for _, e := range edges {
			rules = append(rules, e.rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Source() != rules[j].Source() {
			return rules[i].Source() < rules[j].Source()
		}
		return rules[i].Target() < rules[j].Target()
	})
	return rules
}

// Kinds returns every kind that appears in a rule, sorted. NoSource is omitted.
func (r *ConversionRegistry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Kind]struct{})
	for from, edges := range r.edges {
		if from != NoSource {
			seen[from] = struct{}{}
		}
		for _, e := range edges {
			seen[e.rule.Target()] = struct{}{}
		}
	}
	kinds := make([]Kind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	return SortKinds(kinds)
}

// Resolve finds the shortest chain of rules from any kind in available to target.
// The search runs from all of available at once; when several starts reach target
// in the same number of hops, the one listed first wins. If target is in available
// the path is empty. With no available kinds the search starts from NoSource, so
// only source-less rules can begin a path.
func (r *ConversionRegistry) Resolve(available []Kind, target Kind) (Path, bool) {
	if target == NoSource {
		return nil, false
	}

	input := resolveInput{available: available, target: target}
	var (
		path Path
		err  error
	)
	if r.paths != nil {
		path, err = r.paths.Get(context.Background(), r.pathKey(input), input, r.pathTTL)
	} else {
		path, err = r.resolveUncached(context.Background(), input)
	}
	if err != nil {
		log.Debug(log.CatConvert, "no path", "family", r.family, "from", JoinKinds(available), "to", target)
		return nil, false
	}

	out := make(Path, len(path))
	copy(out, path)
	log.Debug(log.CatConvert, "path resolved", "family", r.family, "from", JoinKinds(available), "to", target, "path", out)
	return out, true
}

func (r *ConversionRegistry) pathKey(in resolveInput) string {
	r.mu.RLock()
	gen := r.generation
	r.mu.RUnlock()
	return fmt.Sprintf("%s|%d|%s|%s", r.family, gen, JoinKinds(in.available), in.target)
}

func (r *ConversionRegistry) resolveUncached(_ context.Context, in resolveInput) (Path, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	starts := in.available
	if len(starts) == 0 {
		starts = []Kind{NoSource}
	}

	visited := make(map[Kind]bool, len(starts))
	queue := make([]Kind, 0, len(starts))
	for _, k := range starts {
		if k == in.target {
			return Path{}, nil
		}
		if !visited[k] {
			visited[k] = true
			queue = append(queue, k)
		}
	}

	via := make(map[Kind]Rule)
	for len(queue) > 0 {
		kind := queue[0]
		queue = queue[1:]

		for _, e := range r.edges[kind] {
			next := e.rule.Target()
			if visited[next] {
				continue
			}
			visited[next] = true
			via[next] = e.rule
			if next == in.target {
				return backtrack(via, next), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, errUnreachable
}

func backtrack(via map[Kind]Rule, target Kind) Path {
	var reversed Path
	for k := target; ; {
		rule, ok := via[k]
		if !ok {
			break
		}
		reversed = append(reversed, rule)
		k = rule.Source()
	}
	path := make(Path, len(reversed))
	for i, rule := range reversed {
		path[len(reversed)-1-i] = rule
	}
	return path
}

// Apply runs path on src and returns the final representation.
// An empty path returns src unchanged.
func (r *ConversionRegistry) Apply(ctx context.Context, path Path, src Representation) (Representation, error) {
	outputs, err := r.Execute(ctx, path, src, nil)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return src, nil
	}
	return outputs[len(outputs)-1], nil
}

// Execute runs path on src and returns the output of every hop in order.
// When reuse holds an instance of a hop's target kind and the hop's rule is an
// Updater, that instance is refreshed in place and returned instead of a new one.
// The first failing rule aborts the path with a *ConversionFailedError; no other
// path is attempted.
func (r *ConversionRegistry) Execute(ctx context.Context, path Path, src Representation, reuse map[Kind]Representation) ([]Representation, error) {
	if len(path) == 0 {
		return nil, nil
	}
	if err := checkSource(path, src); err != nil {
		first := path[0]
		return nil, &ConversionFailedError{Family: r.family, Rule: first.Name(), From: first.Source(), To: first.Target(), Err: err}
	}

	outputs := make([]Representation, 0, len(path))
	var created []Representation
	current := src
	for hop, rule := range path {
		dst := reuse[rule.Target()]
		out, err := r.step(ctx, hop, rule, current, dst)
		if err != nil {
			log.Debug(log.CatConvert, "hop failed", "family", r.family, "rule", rule.Name(), "hop", hop, "path", path, "error", err)
			r.discard(created)
			return nil, &ConversionFailedError{
				Family: r.family,
				Rule:   rule.Name(),
				From:   rule.Source(),
				To:     rule.Target(),
				Hop:    hop,
				Err:    err,
			}
		}
		if !updatesInPlace(rule, dst) {
			created = append(created, out)
		}
		outputs = append(outputs, out)
		current = out
	}
	return outputs, nil
}

func updatesInPlace(rule Rule, dst Representation) bool {
	_, ok := rule.(Updater)
	return ok && dst != nil
}

// discard frees the outputs of an aborted path. Refreshed instances still belong
// to their cache and are never passed here.
func (r *ConversionRegistry) discard(reps []Representation) {
	for _, rep := range reps {
		if err := Discard(rep); err != nil {
			log.Warn(log.CatConvert, "discarding intermediate failed", "family", r.family, "kind", rep.Kind(), "error", err)
		}
	}
}

func checkSource(path Path, src Representation) error {
	want := path.Source()
	switch {
	case want == NoSource && src != nil:
		return fmt.Errorf("path starts from no source but got %s", src.Kind())
	case want != NoSource && src == nil:
		return fmt.Errorf("path starts from %s but source is nil", want)
	case want != NoSource && src.Kind() != want:
		return fmt.Errorf("path starts from %s but source is %s", want, src.Kind())
	}
	return nil
}

func (r *ConversionRegistry) step(ctx context.Context, hop int, rule Rule, src, dst Representation) (Representation, error) {
	ctx, span := r.tracer.Start(ctx, SpanPrefixConvert+rule.Name(), trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String(AttrFamily, string(r.family)),
		attribute.String(AttrRule, rule.Name()),
		attribute.String(AttrSourceKind, rule.Source().String()),
		attribute.String(AttrTargetKind, rule.Target().String()),
		attribute.Int(AttrHop, hop),
	)

	var (
		out Representation
		err error
	)
	if updatesInPlace(rule, dst) {
		err = rule.(Updater).Update(ctx, src, dst)
		out = dst
	} else {
		out, err = rule.Convert(ctx, src)
	}
	if err == nil {
		switch {
		case out == nil:
			err = errors.New("rule returned no representation")
		case out.Kind() != rule.Target():
			err = fmt.Errorf("rule produced %s, want %s", out.Kind(), rule.Target())
			r.discard([]Representation{out})
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}
