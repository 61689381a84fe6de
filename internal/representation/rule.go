package representation

import "context"

// Rule produces a representation of Target() from one of Source().
// Rules with Source() == NoSource receive a nil src.
type Rule interface {
	Name() string
	Source() Kind
	Target() Kind
	Convert(ctx context.Context, src Representation) (Representation, error)
}

// Updater is implemented by rules that can refresh an existing target instance in place.
type Updater interface {
	Update(ctx context.Context, src, dst Representation) error
}

// ConvertFunc is the conversion body of a rule.
type ConvertFunc func(ctx context.Context, src Representation) (Representation, error)

// UpdateFunc refreshes dst from src in place.
type UpdateFunc func(ctx context.Context, src, dst Representation) error

// RuleName returns the conventional "from->to" name.
func RuleName(from, to Kind) string {
	return from.String() + "->" + to.String()
}

type funcRule struct {
	name    string
	from    Kind
	to      Kind
	convert ConvertFunc
}

// NewRule builds a rule from a conversion function.
func NewRule(from, to Kind, convert ConvertFunc) Rule {
	return &funcRule{name: RuleName(from, to), from: from, to: to, convert: convert}
}

func (r *funcRule) Name() string { return r.name }
func (r *funcRule) Source() Kind { return r.from }
func (r *funcRule) Target() Kind { return r.to }

func (r *funcRule) Convert(ctx context.Context, src Representation) (Representation, error) {
	return r.convert(ctx, src)
}

type updatingRule struct {
	funcRule
	update UpdateFunc
}

// NewUpdatingRule builds a rule that can also refresh a stale target in place.
func NewUpdatingRule(from, to Kind, convert ConvertFunc, update UpdateFunc) Rule {
	return &updatingRule{
		funcRule: funcRule{name: RuleName(from, to), from: from, to: to, convert: convert},
		update:   update,
	}
}

func (r *updatingRule) Update(ctx context.Context, src, dst Representation) error {
	return r.update(ctx, src, dst)
}
