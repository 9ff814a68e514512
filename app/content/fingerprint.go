package content

import (
	"math/bits"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

const shingleSize = 3

// Normalize canonicalizes text for fingerprinting: NFKC form, lower case,
// punctuation stripped, whitespace collapsed. Identical wording from
// different sources normalizes to the same string.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Fingerprint computes a 64-bit simhash over word shingles of the normalized
// text. Near-identical texts differ in only a few bits, so hamming distance
// below a small threshold marks near-duplicates.
func Fingerprint(text string) uint64 {
	words := strings.Fields(Normalize(text))
	if len(words) == 0 {
		return 0
	}

	var votes [64]int
	shingles := len(words) - shingleSize + 1
	if shingles < 1 {
		shingles = 1
	}

	for i := 0; i < shingles; i++ {
		end := i + shingleSize
		if end > len(words) {
			end = len(words)
		}
		h := xxhash.Sum64String(strings.Join(words[i:end], " "))
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if votes[bit] > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// HammingDistance returns the number of differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
