package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersDigits = regexp.MustCompile(`[^0-9A-Za-z]+`)
	reKeepReference     = regexp.MustCompile(`[^0-9A-Z-]+`)
	reMultiDash         = regexp.MustCompile(`-+`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func upper(s string) string {
	return strings.ToUpper(s)
}

// SanitizeText is used for names, notes and reasons.
func SanitizeText(input string) string {
	return collapseSpaces(input)
}

func SanitizeCode(input string) string {
	p := Pipeline{
		trim,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "") },
		upper,
	}
	return p.Apply(input)
}

func SanitizeReference(input string) string {
	p := Pipeline{
		trim,
		upper,
		func(s string) string { return reKeepReference.ReplaceAllString(s, "") },
		func(s string) string { return reMultiDash.ReplaceAllString(s, "-") },
		func(s string) string { return strings.Trim(s, "-") },
	}
	return p.Apply(input)
}

func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
