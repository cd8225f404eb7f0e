package images

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// NaturalLess compares a and b chunk by chunk. Digit runs compare by numeric
// value, other runs by their case folded text.
func NaturalLess(a, b string) bool {
	fa, fb := []rune(folder.String(a)), []rune(folder.String(b))
	i, j := 0, 0
	for i < len(fa) && j < len(fb) {
		da, db := unicode.IsDigit(fa[i]), unicode.IsDigit(fb[j])
		switch {
		case da && db:
			si, sj := i, j
			for i < len(fa) && unicode.IsDigit(fa[i]) {
				i++
			}
			for j < len(fb) && unicode.IsDigit(fb[j]) {
				j++
			}
			na := strings.TrimLeft(string(fa[si:i]), "0")
			nb := strings.TrimLeft(string(fb[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			// equal values: fewer leading zeros first
			if i-si != j-sj {
				return i-si < j-sj
			}
		case fa[i] != fb[j]:
			return fa[i] < fb[j]
		default:
			i++
			j++
		}
	}
	if len(fa)-i != len(fb)-j {
		return len(fa)-i < len(fb)-j
	}
	return a < b
}
