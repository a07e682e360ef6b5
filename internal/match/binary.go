package match

import "slices"

// Binary sorts a trimmed copy of the lines and binary searches it.
//
// The result holds at most one line: duplicates are not enumerated, so callers
// must only rely on Found/NotFound semantics. The sorted copy is rebuilt on
// every call and never retained.
func Binary(lines []string, query string) []string {
	q := Trim(query)
	sorted := make([]string, len(lines))
	for i, line := range lines {
		sorted[i] = Trim(line)
	}
	slices.Sort(sorted)

	if _, found := slices.BinarySearch(sorted, q); found {
		return []string{q}
	}
	return nil
}
