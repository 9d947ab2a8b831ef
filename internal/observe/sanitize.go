package observe

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces secret material in sanitized log output.
const Redacted = "[REDACTED]"

// secretKeys are attribute keys whose values are always redacted wholesale,
// regardless of shape. Connection strings (dsn, url) are included because
// they routinely embed credential pairs.
var secretKeys = map[string]struct{}{
	"password":      {},
	"passwd":        {},
	"secret":        {},
	"token":         {},
	"access_token":  {},
	"api_key":       {},
	"apikey":        {},
	"authorization": {},
	"dsn":           {},
}

var (
	// API-key-shaped strings (sk-..., sk-proj-..., and similar prefixed keys).
	apiKeyPattern = regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_-]{16,}\b`)

	// Bearer tokens in headers or prose.
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{8,}`)

	// key=value / key: value credential pairs; the key and separator survive.
	credentialPairPattern = regexp.MustCompile(`(?i)\b(password|passwd|secret|api[_-]?key|access[_-]?token|token)(\s*[=:]\s*)(\S+)`)
)

// Redact returns s with anything matching a known secret pattern replaced by
// [Redacted]. Use it directly when logging caller-supplied input that failed
// validation; every attribute flowing through [NewSanitizingHandler] gets the
// same treatment automatically.
func Redact(s string) string {
	s = apiKeyPattern.ReplaceAllString(s, Redacted)
	s = bearerPattern.ReplaceAllString(s, Redacted)
	s = credentialPairPattern.ReplaceAllString(s, "${1}${2}"+Redacted)
	return s
}

// SanitizingHandler wraps an [slog.Handler] and redacts secret-shaped values
// from every record before emission: messages, string attributes, and
// attributes whose key names a credential.
type SanitizingHandler struct {
	inner slog.Handler
}

// NewSanitizingHandler returns a handler that sanitizes records and forwards
// them to inner.
func NewSanitizingHandler(inner slog.Handler) *SanitizingHandler {
	return &SanitizingHandler{inner: inner}
}

// Enabled implements slog.Handler.
func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler. The record's message and attributes are
// sanitized into a fresh record; the original is never mutated.
func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs implements slog.Handler. Attributes are sanitized eagerly so they
// are clean no matter which record they later attach to.
func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &SanitizingHandler{inner: h.inner.WithAttrs(clean)}
}

// WithGroup implements slog.Handler.
func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{inner: h.inner.WithGroup(name)}
}

// sanitizeAttr redacts a single attribute. Group values recurse; non-string
// scalar kinds pass through untouched.
func sanitizeAttr(a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = sanitizeAttr(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	default:
		return a
	}
}

var _ slog.Handler = (*SanitizingHandler)(nil)
