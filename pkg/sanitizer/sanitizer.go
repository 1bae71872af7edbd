package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

// CollapseWhitespace trims s and folds every run of Unicode whitespace,
// newlines included, into a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clamp(maxRunes int) Strategy {
	return func(s string) string {
		if maxRunes <= 0 {
			return s
		}
		runes := []rune(s)
		if len(runes) <= maxRunes {
			return s
		}
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
}

// SanitizeNote cleans a user supplied note and bounds it to maxRunes runes.
// A maxRunes of zero or less disables the bound.
func SanitizeNote(input string, maxRunes int) string {
	p := Pipeline{
		stripControl,
		CollapseWhitespace,
		clamp(maxRunes),
	}
	return p.Apply(input)
}
