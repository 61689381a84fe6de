package representation

import (
	"sort"
	"strings"
)

// Kind names one backend encoding within a family, e.g. "ram", "gpu", "disk".
type Kind string

// NoSource marks rules that build a representation from nothing.
const NoSource Kind = ""

func (k Kind) String() string {
	if k == NoSource {
		return "<none>"
	}
	return string(k)
}

// Family names a set of mutually convertible kinds, e.g. "volume".
type Family string

func (f Family) String() string { return string(f) }

// SortKinds sorts kinds in place and returns them.
func SortKinds(kinds []Kind) []Kind {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// JoinKinds renders kinds as "a,b,c".
func JoinKinds(kinds []Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}
