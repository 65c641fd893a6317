package progress

import "math"

// MaxTextRunes bounds free text stored on the aggregate.
const MaxTextRunes = 2000

// Clamp bounds x to [lo, hi]. NaN and infinities map to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// TruncateRunes keeps at most max runes of s.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
