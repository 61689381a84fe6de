package representation

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/datarep/internal/format"
)

// testRep is a minimal representation carrying a single value.
type testRep struct {
	kind  Kind
	f     format.Descriptor
	value int
}

func (r *testRep) Kind() Kind                { return r.kind }
func (r *testRep) Format() format.Descriptor { return r.f }
func (r *testRep) Clone() (Representation, error) {
	c := *r
	return &c, nil
}

func newTestRep(kind Kind, value int) *testRep {
	return &testRep{kind: kind, f: format.Float32, value: value}
}

// copyRule converts by copying the value, adding delta.
func copyRule(from, to Kind, delta int) Rule {
	return NewRule(from, to, func(_ context.Context, src Representation) (Representation, error) {
		v := 0
		if src != nil {
			v = src.(*testRep).value
		}
		return newTestRep(to, v+delta), nil
	})
}

func failingRule(from, to Kind) Rule {
	return NewRule(from, to, func(context.Context, Representation) (Representation, error) {
		return nil, errors.New("boom")
	})
}

func kindsOf(p Path) string {
	return fmt.Sprint(p.Kinds())
}

// heldRep is a testRep standing in for a representation with external resources.
type heldRep struct {
	testRep
	discarded int
}

func (r *heldRep) Discard() error {
	r.discarded++
	return nil
}
