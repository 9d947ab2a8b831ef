package discover

import (
	"strings"
	"unicode"
)

// snakeCase converts CamelCase and lowerCamelCase names to snake_case.
// Acronym runs stay together: "APIToken" becomes "api_token". Names that are
// already snake_case pass through unchanged.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 && runes[i-1] != '_' {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// upperSnake converts a relation name to its edge type spelling:
// "assignedTechnician" becomes "ASSIGNED_TECHNICIAN".
func upperSnake(s string) string {
	return strings.ToUpper(snakeCase(s))
}

// plural naively pluralizes an English noun: sibilant endings take "es",
// consonant-y becomes "ies", everything else takes "s". Irregular nouns come
// out wrong ("person" → "persons"); declare an explicit alias or collection
// name on the descriptor when that matters.
func plural(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"), strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "sh"):
		return s + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(rune(lower[len(lower)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// normalizeScopeName converts a host-level filter method name to its scope
// name: snake_case with a leading "scope_" prefix stripped, so both
// "scopeActive" and "active" yield "active".
func normalizeScopeName(s string) string {
	name := snakeCase(s)
	if trimmed := strings.TrimPrefix(name, "scope_"); trimmed != "" {
		return trimmed
	}
	return name
}
