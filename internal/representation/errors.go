package representation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchCreator is returned when a CreatorRegistry has no creator for a kind.
	ErrNoSuchCreator = errors.New("no such creator")
	// ErrNoPath is returned when no chain of rules reaches the requested kind.
	ErrNoPath = errors.New("no conversion path")
	// ErrConversionFailed is returned when a rule in a resolved path fails.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrCreateFailed is returned when a registered creator cannot build its kind.
	ErrCreateFailed = errors.New("create failed")
)

// NoSuchCreatorError names the family and kind that had no creator.
type NoSuchCreatorError struct {
	Family Family
	Kind   Kind
}

func (e *NoSuchCreatorError) Error() string {
	return fmt.Sprintf("%s: no creator registered for kind %s", e.Family, e.Kind)
}

func (e *NoSuchCreatorError) Is(target error) bool { return target == ErrNoSuchCreator }

// CreateFailedError wraps why a registered creator could not build a kind,
// e.g. an invalid format or bad dimensions.
type CreateFailedError struct {
	Family Family
	Kind   Kind
	Err    error
}

func (e *CreateFailedError) Error() string {
	return fmt.Sprintf("%s: create %s: %v", e.Family, e.Kind, e.Err)
}

func (e *CreateFailedError) Unwrap() error { return e.Err }

func (e *CreateFailedError) Is(target error) bool { return target == ErrCreateFailed }

// NoPathError names the kinds a search started from and the kind it could not reach.
type NoPathError struct {
	Family Family
	From   []Kind
	To     Kind
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("%s: no conversion path from [%s] to %s", e.Family, JoinKinds(e.From), e.To)
}

func (e *NoPathError) Is(target error) bool { return target == ErrNoPath }

// ConversionFailedError wraps the error of the rule that failed.
type ConversionFailedError struct {
	Family Family
	Rule   string
	From   Kind
	To     Kind
	// Hop is the zero-based position of the failing rule in its path.
	Hop int
	Err error
}

func (e *ConversionFailedError) Error() string {
	return fmt.Sprintf("%s: rule %s (hop %d) failed: %v", e.Family, e.Rule, e.Hop, e.Err)
}

func (e *ConversionFailedError) Unwrap() error { return e.Err }

func (e *ConversionFailedError) Is(target error) bool { return target == ErrConversionFailed }
