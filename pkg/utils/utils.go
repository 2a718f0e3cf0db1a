package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics strips combining marks so "Café Crème" slugs the same
// way as "Cafe Creme".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ToSlug derives a hyphenated lowercase slug from a title. Runs of
// non-alphanumeric characters collapse into a single hyphen.
func ToSlug(s string) string {
	return slugify(s, '-')
}

// ToSnakeSlug derives an underscored lowercase slug from a title.
// This is the alternate strategy selected by slugCase=false call sites.
func ToSnakeSlug(s string) string {
	return slugify(s, '_')
}

func slugify(s string, sep rune) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	var b strings.Builder
	b.Grow(len(folded))
	lastSep := true // swallow leading separators
	for _, r := range folded {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		// anything else, including ':' in "read:invoice", separates
		if !lastSep {
			b.WriteRune(sep)
			lastSep = true
		}
	}
	return strings.TrimRight(b.String(), string(sep))
}

// SlugFor applies the slug strategy selected by the slugCase flag:
// hyphenated when true, underscored when false.
func SlugFor(title string, slugCase bool) string {
	if slugCase {
		return ToSlug(title)
	}
	return ToSnakeSlug(title)
}

// UniqueStrings returns the input with duplicates removed, order preserved.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
