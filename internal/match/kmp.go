package match

// KMPTable computes the Knuth-Morris-Pratt failure function: entry i holds the
// length of the longest proper prefix of pattern[:i+1] that is also a suffix.
func KMPTable(pattern string) []int {
	lps := make([]int, len(pattern))
	length := 0
	for i := 1; i < len(pattern); {
		switch {
		case pattern[i] == pattern[length]:
			length++
			lps[i] = length
			i++
		case length != 0:
			length = lps[length-1]
		default:
			lps[i] = 0
			i++
		}
	}
	return lps
}

// KMPIndex returns the offsets of every occurrence of pattern in text.
func KMPIndex(text, pattern string) []int {
	if pattern == "" {
		return emptyPatternOffsets(len(text))
	}
	return kmpScan(text, pattern, KMPTable(pattern), false)
}

func kmpScan(text, pattern string, lps []int, firstOnly bool) []int {
	var out []int
	j := 0
	for i := 0; i < len(text); i++ {
		for j > 0 && text[i] != pattern[j] {
			j = lps[j-1]
		}
		if text[i] == pattern[j] {
			j++
		}
		if j == len(pattern) {
			out = append(out, i-j+1)
			if firstOnly {
				return out
			}
			j = lps[j-1]
		}
	}
	return out
}

// KMP keeps the lines in which a Knuth-Morris-Pratt scan finds the query
// spanning the whole trimmed line.
func KMP(lines []string, query string) []string {
	q := Trim(query)
	if q == "" {
		return emptyLines(lines)
	}
	lps := KMPTable(q)
	var out []string
	for _, line := range lines {
		l := Trim(line)
		if hits := kmpScan(l, q, lps, true); len(hits) > 0 && len(l) == len(q) {
			out = append(out, l)
		}
	}
	return out
}

// emptyLines returns the lines that are empty after trimming.
func emptyLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if Trim(line) == "" {
			out = append(out, "")
		}
	}
	return out
}
