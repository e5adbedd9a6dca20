package views

import (
	"regexp"
	"strings"
	"unicode"
)

// trailingParenPattern matches a trailing parenthetical, ASCII or
// full-width. Examples: " (容器编排)", "（Kubernetes）".
var trailingParenPattern = regexp.MustCompile(`\s*[(（]([^)）]*)[)）]\s*$`)

// StripTranslationSpan removes a trailing parenthetical translation
// from a technology name: "Kubernetes (容器编排)" → "Kubernetes". The
// parenthetical goes only when its script differs from the base name's,
// so "K8s (Kubernetes)" and version notes survive.
func StripTranslationSpan(name string) string {
	m := trailingParenPattern.FindStringSubmatchIndex(name)
	if m == nil {
		return name
	}
	base := strings.TrimSpace(name[:m[0]])
	inner := name[m[2]:m[3]]
	if base == "" {
		return name
	}
	if containsCJK(base) != containsCJK(inner) {
		return base
	}
	return name
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

// normalizeTechnologies strips translation spans, trims, deduplicates
// case-insensitively and caps the list.
func normalizeTechnologies(list []string, max int) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, t := range list {
		t = strings.TrimSpace(StripTranslationSpan(t))
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// capStrings drops empties and truncates the list to max entries.
// max <= 0 means no cap.
func capStrings(list []string, max int) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
