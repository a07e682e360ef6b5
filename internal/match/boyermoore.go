package match

// BadCharTable records the last index of every byte value in pattern, or -1
// when the byte does not occur.
func BadCharTable(pattern string) [256]int {
	var table [256]int
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(pattern); i++ {
		table[pattern[i]] = i
	}
	return table
}

// GoodSuffixTable computes the strong good-suffix shifts. Entry j+1 is the
// shift to apply after a mismatch at pattern position j; entry 0 is the shift
// after a full match.
func GoodSuffixTable(pattern string) []int {
	m := len(pattern)
	shift := make([]int, m+1)
	border := make([]int, m+1)

	i, j := m, m+1
	border[i] = j
	for i > 0 {
		for j <= m && pattern[i-1] != pattern[j-1] {
			if shift[j] == 0 {
				shift[j] = j - i
			}
			j = border[j]
		}
		i--
		j--
		border[i] = j
	}

	j = border[0]
	for i := 0; i <= m; i++ {
		if shift[i] == 0 {
			shift[i] = j
		}
		if i == j {
			j = border[j]
		}
	}
	return shift
}

type boyerMoore struct {
	pattern string
	badChar [256]int
	good    []int
}

func newBoyerMoore(pattern string) *boyerMoore {
	return &boyerMoore{
		pattern: pattern,
		badChar: BadCharTable(pattern),
		good:    GoodSuffixTable(pattern),
	}
}

// scan compares right to left and advances by the larger of the bad-character
// and good-suffix shifts.
func (b *boyerMoore) scan(text string, firstOnly bool) []int {
	m, n := len(b.pattern), len(text)
	var out []int
	for s := 0; s <= n-m; {
		j := m - 1
		for j >= 0 && b.pattern[j] == text[s+j] {
			j--
		}
		if j < 0 {
			out = append(out, s)
			if firstOnly {
				return out
			}
			s += b.good[0]
			continue
		}
		s += max(j-b.badChar[text[s+j]], b.good[j+1])
	}
	return out
}

// BoyerMooreIndex returns the offsets of every occurrence of pattern in text.
func BoyerMooreIndex(text, pattern string) []int {
	if pattern == "" {
		return emptyPatternOffsets(len(text))
	}
	return newBoyerMoore(pattern).scan(text, false)
}

// BoyerMoore keeps the lines in which a Boyer-Moore scan finds the query
// spanning the whole trimmed line.
func BoyerMoore(lines []string, query string) []string {
	q := Trim(query)
	if q == "" {
		return emptyLines(lines)
	}
	bm := newBoyerMoore(q)
	var out []string
	for _, line := range lines {
		l := Trim(line)
		if hits := bm.scan(l, true); len(hits) > 0 && len(l) == len(q) {
			out = append(out, l)
		}
	}
	return out
}
