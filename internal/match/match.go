// Package match implements the exact line matching algorithms shared by the
// query engine and the benchmark harness.
//
// Every algorithm answers the same question: which dataset lines, once
// trimmed, are byte-for-byte equal to the trimmed query. The substring
// algorithms (KMP, Boyer-Moore, Rabin-Karp, Z) run their classical search per
// line and keep a line only when the occurrence covers the whole line, so all
// of them agree with Linear on membership. Binary differs in one respect: it
// reports existence only and never enumerates duplicates.
//
// Matching is case-sensitive and performs no normalization beyond trimming
// surrounding whitespace. An empty query matches only lines that are empty
// after trimming.
package match

import (
	"sort"
	"strings"
)

// SearchFunc returns the trimmed lines equal to the trimmed query.
type SearchFunc func(lines []string, query string) []string

// Algorithm describes one matching strategy.
type Algorithm struct {
	Name string
	// Search runs the algorithm.
	Search SearchFunc
	// AllMatches is false when the algorithm reports at most one line for a
	// query, regardless of how many duplicates the dataset holds.
	AllMatches bool
	// Complexity is a short human readable cost summary.
	Complexity string
}

// Algorithm names.
const (
	NameLinear     = "linear"
	NameBinary     = "binary"
	NameKMP        = "kmp"
	NameBoyerMoore = "boyer_moore"
	NameRabinKarp  = "rabin_karp"
	NameZ          = "z_algorithm"
)

var registry = []Algorithm{
	{Name: NameLinear, Search: Linear, AllMatches: true, Complexity: "O(n*m) time, O(1) space"},
	{Name: NameBinary, Search: Binary, AllMatches: false, Complexity: "O(n log n) sort + O(log n) search, O(n) space"},
	{Name: NameKMP, Search: KMP, AllMatches: true, Complexity: "O(n + m) per line, O(m) space"},
	{Name: NameBoyerMoore, Search: BoyerMoore, AllMatches: true, Complexity: "O(n/m) best, O(n*m) worst per line, O(m + 256) space"},
	{Name: NameRabinKarp, Search: RabinKarp, AllMatches: true, Complexity: "O(n + m) expected, O(n*m) worst per line, O(1) space"},
	{Name: NameZ, Search: Z, AllMatches: true, Complexity: "O(N + m) over the joined dataset, O(N + m) space"},
}

// aliases maps names used by older benchmark reports.
var aliases = map[string]string{
	"naive": NameLinear,
}

// All returns every registered algorithm in a stable order.
func All() []Algorithm {
	out := make([]Algorithm, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered algorithm names.
func Names() []string {
	names := make([]string, len(registry))
	for i, a := range registry {
		names[i] = a.Name
	}
	return names
}

// Lookup finds an algorithm by name or alias.
func Lookup(name string) (Algorithm, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	for _, a := range registry {
		if a.Name == name {
			return a, true
		}
	}
	return Algorithm{}, false
}

// Resolve looks up each name and fails on the first unknown one.
func Resolve(names []string) ([]Algorithm, error) {
	if len(names) == 0 {
		return All(), nil
	}
	out := make([]Algorithm, 0, len(names))
	for _, n := range names {
		a, ok := Lookup(n)
		if !ok {
			return nil, &UnknownAlgorithmError{Name: n}
		}
		out = append(out, a)
	}
	return out, nil
}

// UnknownAlgorithmError reports a name that is not registered.
type UnknownAlgorithmError struct {
	Name string
}

func (e *UnknownAlgorithmError) Error() string {
	known := Names()
	sort.Strings(known)
	return "unknown algorithm '" + e.Name + "' (known: " + strings.Join(known, ", ") + ")"
}

// Contains reports whether alg finds at least one line equal to query.
func Contains(alg Algorithm, lines []string, query string) bool {
	return len(alg.Search(lines, query)) > 0
}

// Trim strips the surrounding whitespace, line terminators included, that is
// ignored when comparing lines and queries.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// emptyPatternOffsets reports an empty pattern at every offset of text.
func emptyPatternOffsets(n int) []int {
	out := make([]int, n+1)
	for i := range out {
		out[i] = i
	}
	return out
}
