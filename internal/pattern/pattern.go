package pattern

import "crypto/sha256"

// DefaultDimensions is the pattern length used when none is configured.
const DefaultDimensions = 128

// Pattern is a bipolar vector over {-1, +1}.
type Pattern []int8

// Encode maps content to a deterministic bipolar pattern of length n.
// The SHA-256 digest of content is expanded by re-hashing the previous digest
// until at least n bits are available; bit i (MSB first) becomes +1 when set
// and -1 otherwise. The mapping is one-way and stable across processes.
func Encode(content string, n int) Pattern {
	if n <= 0 {
		return Pattern{}
	}

	digest := sha256.Sum256([]byte(content))
	buf := make([]byte, 0, (n+7)/8+sha256.Size)
	buf = append(buf, digest[:]...)
	for len(buf)*8 < n {
		digest = sha256.Sum256(digest[:])
		buf = append(buf, digest[:]...)
	}

	p := make(Pattern, n)
	for i := 0; i < n; i++ {
		if buf[i/8]>>(7-uint(i%8))&1 == 1 {
			p[i] = 1
		} else {
			p[i] = -1
		}
	}
	return p
}

// Normalize returns a copy of p with every value mapped to {-1, +1}.
// Zero maps to +1.
func Normalize(p Pattern) Pattern {
	out := make(Pattern, len(p))
	for i, v := range p {
		if v < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// FromFloats converts a real-valued vector to a pattern using the same
// sign rule as Normalize.
func FromFloats(v []float64) Pattern {
	out := make(Pattern, len(v))
	for i, x := range v {
		if x < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// Negate returns the spin-flipped copy of p.
func Negate(p Pattern) Pattern {
	out := make(Pattern, len(p))
	for i, v := range p {
		out[i] = -v
	}
	return out
}

// Clone returns an independent copy of p.
func Clone(p Pattern) Pattern {
	out := make(Pattern, len(p))
	copy(out, p)
	return out
}

// Equal reports whether a and b are bit-identical.
func Equal(a, b Pattern) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hamming counts the positions at which a and b differ.
// Patterns of different length are compared over the shorter prefix.
func Hamming(a, b Pattern) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}
