package match

// zDelimiter separates the pattern from the searched text.
const zDelimiter = 0x00

// ZArray computes the Z-array of s: entry i is the length of the longest
// common prefix of s and s[i:]. Entry 0 is len(s).
func ZArray(s []byte) []int {
	n := len(s)
	z := make([]int, n)
	if n == 0 {
		return z
	}
	z[0] = n
	l, r := 0, 0
	for i := 1; i < n; i++ {
		if i < r {
			z[i] = min(r-i, z[i-l])
		}
		for i+z[i] < n && s[z[i]] == s[i+z[i]] {
			z[i]++
		}
		if i+z[i] > r {
			l, r = i, i+z[i]
		}
	}
	return z
}

// ZIndex returns the offsets of every occurrence of pattern in text.
func ZIndex(text, pattern string) []int {
	m := len(pattern)
	if m == 0 {
		return emptyPatternOffsets(len(text))
	}
	buf := make([]byte, 0, m+1+len(text))
	buf = append(buf, pattern...)
	buf = append(buf, zDelimiter)
	buf = append(buf, text...)
	z := ZArray(buf)

	var out []int
	for i := m + 1; i+m <= len(buf); i++ {
		if z[i] >= m {
			out = append(out, i-m-1)
		}
	}
	return out
}

// Z runs one Z-array pass over the query, a delimiter, and every trimmed line
// joined by newlines.
//
// A Z hit is only reported when it starts on a line boundary and the line is
// exactly as long as the query. Without that check a hit could span the end
// of one line and the start of the next.
func Z(lines []string, query string) []string {
	q := Trim(query)
	if q == "" {
		return emptyLines(lines)
	}
	m := len(q)

	trimmed := make([]string, len(lines))
	size := m + 1
	for i, line := range lines {
		trimmed[i] = Trim(line)
		size += len(trimmed[i]) + 1
	}

	buf := make([]byte, 0, size)
	buf = append(buf, q...)
	buf = append(buf, zDelimiter)
	starts := make([]int, len(trimmed))
	for i, l := range trimmed {
		if i > 0 {
			buf = append(buf, '\n')
		}
		starts[i] = len(buf)
		buf = append(buf, l...)
	}
	z := ZArray(buf)

	var out []string
	for i, l := range trimmed {
		if len(l) != m {
			continue
		}
		if z[starts[i]] >= m {
			out = append(out, l)
		}
	}
	return out
}
