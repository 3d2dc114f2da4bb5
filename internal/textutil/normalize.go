package textutil

import (
	"strings"
	"unicode"
)

// CollapseSpace trims s and folds internal whitespace runs to single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeName lowercases s and replaces punctuation with spaces, so
// "Qi10-Driver (2024)" and "qi10 driver 2024" compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return CollapseSpace(b.String())
}

// ProductKey joins the normalized brand and name. A name that already
// starts with the brand is not prefixed twice.
func ProductKey(brand, name string) string {
	brand = NormalizeName(brand)
	name = NormalizeName(name)
	if brand != "" && strings.HasPrefix(name, brand+" ") {
		name = strings.TrimSpace(name[len(brand):])
	}
	return brand + ":" + name
}

// AlnumCount returns the number of letters and digits in s.
func AlnumCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
