package entity

import (
	"regexp"
	"strings"

	"github.com/MrWong99/graphseer/pkg/errs"
)

// identifierPattern is the only shape a label, property, relationship type,
// or scope name may take anywhere in the engine.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// maxIdentifierLen caps identifier length.
const maxIdentifierLen = 255

// writeKeywords are the query-language operations that modify data. They are
// rejected both as identifiers and, unless writes are explicitly allowed,
// inside generated or executed queries.
var writeKeywords = map[string]bool{
	"delete": true,
	"remove": true,
	"drop":   true,
	"create": true,
	"merge":  true,
	"set":    true,
	"detach": true,
}

// ValidIdentifier reports whether s is a safe identifier: matches
// [A-Za-z_][A-Za-z0-9_]*, is at most 255 characters, and is not a reserved
// write keyword.
func ValidIdentifier(s string) bool {
	if s == "" || len(s) > maxIdentifierLen {
		return false
	}
	if writeKeywords[strings.ToLower(s)] {
		return false
	}
	return identifierPattern.MatchString(s)
}

// CheckIdentifier validates s and returns a [errs.KindInjectionDefense]
// error naming what was being validated. The offending value is redacted to
// its leading safe prefix so logs never carry a raw injection attempt.
func CheckIdentifier(what, s string) error {
	if ValidIdentifier(s) {
		return nil
	}
	return errs.Newf(errs.KindInjectionDefense, "identifier", "%s %q is not a valid identifier", what, Redact(s))
}

// Redact truncates s to its leading run of identifier-safe characters,
// appending a marker when anything was cut. Used when an unsafe value must
// appear in an error message or log line.
func Redact(s string) string {
	for i, r := range s {
		safe := r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if !safe {
			return s[:i] + "…[redacted]"
		}
		if i >= 32 {
			return s[:i] + "…[truncated]"
		}
	}
	return s
}

// IsWriteKeyword reports whether the lowercased word is a reserved write
// operation.
func IsWriteKeyword(word string) bool {
	return writeKeywords[strings.ToLower(word)]
}

// wordPattern splits query text into bare word tokens for keyword scanning.
var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// quotedSpan matches single- and double-quoted string literals, including
// escaped quotes inside them.
var quotedSpan = regexp.MustCompile(`'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`)

// FindWriteKeyword scans query text for reserved write keywords and returns
// the first one found. The scan is token-based and skips quoted string
// literals, so property names that merely contain a keyword (e.g.
// "created_at") and user data like 'delete' do not trigger it.
func FindWriteKeyword(query string) (string, bool) {
	bare := quotedSpan.ReplaceAllStringFunc(query, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	for _, tok := range wordPattern.FindAllString(bare, -1) {
		if IsWriteKeyword(tok) {
			return strings.ToLower(tok), true
		}
	}
	return "", false
}
