package match

// Linear compares every trimmed line with the query. It is the reference
// implementation the other algorithms are checked against.
func Linear(lines []string, query string) []string {
	q := Trim(query)
	var out []string
	for _, line := range lines {
		if l := Trim(line); l == q {
			out = append(out, l)
		}
	}
	return out
}
