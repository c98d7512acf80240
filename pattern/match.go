package pattern

import "bytes"

// anchor returns the index of the first literal byte, or -1 for an all-wildcard pattern.
func (p BytePattern) anchor() int {
	for i, m := range p.Mask {
		if m {
			return i
		}
	}
	return -1
}

func (p BytePattern) matchesAt(haystack []byte, i int) bool {
	for j, m := range p.Mask {
		if m && haystack[i+j] != p.Needle[j] {
			return false
		}
	}
	return true
}

// MatchAt returns the lowest offset >= start where p matches haystack, or -1.
// It fails with ErrInvalidRange when start < 0 or start+len(p) > len(haystack).
// Candidates are located with bytes.IndexByte on the first literal byte, so the
// result is the same as a byte-by-byte comparison at every offset.
func MatchAt(haystack []byte, p BytePattern, start int) (int, error) {
	if err := p.Validate(); err != nil {
		return -1, err
	}

	n := len(p.Needle)
	if start < 0 || n+start > len(haystack) {
		return -1, ErrInvalidRange
	}

	last := len(haystack) - n
	anchor := p.anchor()
	if anchor < 0 {
		return start, nil
	}

	b := p.Needle[anchor]
	for i := start; i <= last; i++ {
		j := bytes.IndexByte(haystack[i+anchor:last+anchor+1], b)
		if j < 0 {
			return -1, nil
		}
		i += j
		if p.matchesAt(haystack, i) {
			return i, nil
		}
	}
	return -1, nil
}

// MatchAll returns every offset where p matches, in ascending order. Matches may overlap.
func MatchAll(haystack []byte, p BytePattern) []int {
	var hits []int
	for start := 0; start+len(p.Needle) <= len(haystack); {
		i, err := MatchAt(haystack, p, start)
		if err != nil || i < 0 {
			break
		}
		hits = append(hits, i)
		start = i + 1
	}
	return hits
}
