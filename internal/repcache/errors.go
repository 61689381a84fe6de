package repcache

import (
	"errors"
	"fmt"

	"github.com/zjrosen/datarep/internal/representation"
)

// ErrNotPresent is returned when an operation names a kind the cache holds no instance of.
var ErrNotPresent = errors.New("representation not present")

// Op names the cache operation that failed.
type Op string

const (
	OpGet        Op = "get"
	OpGetMut     Op = "get_mut"
	OpInvalidate Op = "invalidate"
	OpClone      Op = "clone"
)

// Error is returned by every failing cache operation. Err is one of
// *representation.NoSuchCreatorError, *representation.CreateFailedError,
// *representation.NoPathError, *representation.ConversionFailedError or
// ErrNotPresent, so callers can branch with errors.Is on the representation
// sentinels. Clone failures wrap the failing instance's own error.
type Error struct {
	Op     Op
	Family representation.Family
	// Requested is the kind the caller asked for.
	Requested representation.Kind
	// Authoritative is the authoritative kind at the time of the call, NoSource if the cache was empty.
	Authoritative representation.Kind
	Err           error
}

func (e *Error) Error() string {
	return fmt.Sprintf("repcache %s %s/%s (authoritative %s): %v",
		e.Op, e.Family, e.Requested, e.Authoritative, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Rule returns the name of the failing conversion rule, or "" when no rule ran.
func (e *Error) Rule() string {
	var cfe *representation.ConversionFailedError
	if errors.As(e.Err, &cfe) {
		return cfe.Rule
	}
	return ""
}
