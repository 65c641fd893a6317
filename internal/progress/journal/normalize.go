package journal

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

const (
	// MaxTextRunes bounds a stored entry's text.
	MaxTextRunes = progress.MaxTextRunes
	// BucketMillis is the width of the coalescing bucket.
	BucketMillis = 120_000
	// DuplicateWindowMillis is how far apart identical texts still count as duplicates.
	DuplicateWindowMillis = 12 * 60 * 60 * 1000
)

func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize folds text for duplicate detection: lower case, no diacritics,
// single spaces, and runs of three or more identical characters cut to two.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	folded, _, err := transform.String(stripMarks(), lower)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return collapseRuns(strings.Join(strings.Fields(folded), " "))
}

func collapseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		if run <= 2 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Bucket returns the two-minute bucket of ms, or -1 when ms is unknown.
func Bucket(ms int64) int64 {
	if ms == 0 {
		return -1
	}
	return int64(math.Floor(float64(ms) / BucketMillis))
}

// Signature identifies one logical draft: same text, same tab, same bucket.
func Signature(normalized, tabID string, ms int64) string {
	return fmt.Sprintf("%s|%s|%d", normalized, tabID, int64(math.Floor(float64(ms)/BucketMillis)))
}
