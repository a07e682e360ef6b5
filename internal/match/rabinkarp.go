package match

// Rolling hash parameters.
const (
	rkModulus = 101
	rkBase    = 256
)

type rabinKarp struct {
	pattern string
	hash    int
	// high is rkBase^(m-1) mod rkModulus, the weight of the outgoing byte.
	high int
}

func newRabinKarp(pattern string) *rabinKarp {
	rk := &rabinKarp{pattern: pattern, high: 1}
	for i := 0; i < len(pattern)-1; i++ {
		rk.high = rk.high * rkBase % rkModulus
	}
	for i := 0; i < len(pattern); i++ {
		rk.hash = (rkBase*rk.hash + int(pattern[i])) % rkModulus
	}
	return rk
}

func (rk *rabinKarp) scan(text string, firstOnly bool) []int {
	m, n := len(rk.pattern), len(text)
	if n < m {
		return nil
	}

	t := 0
	for i := 0; i < m; i++ {
		t = (rkBase*t + int(text[i])) % rkModulus
	}

	var out []int
	for i := 0; i <= n-m; i++ {
		if t == rk.hash && text[i:i+m] == rk.pattern {
			out = append(out, i)
			if firstOnly {
				return out
			}
		}
		if i < n-m {
			t = (rkBase*(t-int(text[i])*rk.high) + int(text[i+m])) % rkModulus
			if t < 0 {
				t += rkModulus
			}
		}
	}
	return out
}

// RabinKarpIndex returns the offsets of every occurrence of pattern in text.
// Hash hits are verified byte-wise, so collisions never produce false offsets.
func RabinKarpIndex(text, pattern string) []int {
	if pattern == "" {
		return emptyPatternOffsets(len(text))
	}
	return newRabinKarp(pattern).scan(text, false)
}

// RabinKarp keeps the lines in which a rolling-hash scan finds the query
// spanning the whole trimmed line.
func RabinKarp(lines []string, query string) []string {
	q := Trim(query)
	if q == "" {
		return emptyLines(lines)
	}
	rk := newRabinKarp(q)
	var out []string
	for _, line := range lines {
		l := Trim(line)
		if hits := rk.scan(l, true); len(hits) > 0 && len(l) == len(q) {
			out = append(out, l)
		}
	}
	return out
}
