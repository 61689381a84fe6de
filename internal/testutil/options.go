package testutil

// CreatorOption configures a test creator.
type CreatorOption func(*creatorSpec)

type creatorSpec struct {
	fill float64
	err  error
}

// FillWith makes the creator fill every element with v.
func FillWith(v float64) CreatorOption {
	return func(s *creatorSpec) { s.fill = v }
}

// CreateFails makes the creator return err.
func CreateFails(err error) CreatorOption {
	return func(s *creatorSpec) { s.err = err }
}

// RuleOption configures a test rule.
type RuleOption func(*ruleSpec)

type ruleSpec struct {
	from, to string
	scale    float64
	offset   float64
	inPlace  bool
	err      error
}

// Scale multiplies every value by k during conversion.
func Scale(k float64) RuleOption {
	return func(s *ruleSpec) { s.scale = k }
}

// Offset adds d to every value during conversion.
func Offset(d float64) RuleOption {
	return func(s *ruleSpec) { s.offset = d }
}

// InPlace makes the rule an Updater that refreshes existing targets.
func InPlace() RuleOption {
	return func(s *ruleSpec) { s.inPlace = true }
}

// Fails makes the rule return err.
func Fails(err error) RuleOption {
	return func(s *ruleSpec) { s.err = err }
}
