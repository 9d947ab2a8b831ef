package querygen

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/MrWong99/graphseer/pkg/retrieve"
)

// template is one regex-anchored question shape answered without an LLM
// call. A template only fires when every captured term resolves against
// the schema or the detected entity metadata; anything that does not
// resolve falls through to the LLM path.
type template struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string, b *retrieve.Bundle, limit int) (string, bool)
}

var templates = []template{
	{
		name:    "list_all",
		pattern: regexp.MustCompile(`^(?i)(?:list|show|get|display)(?: me)?(?: all(?: of)?(?: the)?| the| every)? ([a-z0-9_ ]+?)[.?!]?$`),
		build: func(m []string, b *retrieve.Bundle, limit int) (string, bool) {
			label, ok := resolveLabel(m[1], b)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT %d", label, limit), true
		},
	},
	{
		name:    "count",
		pattern: regexp.MustCompile(`^(?i)(?:how many|count(?: the| all)?) ([a-z0-9_ ]+?)(?: are there| do we have| exist)?[.?!]?$`),
		build: func(m []string, b *retrieve.Bundle, limit int) (string, bool) {
			label, ok := resolveLabel(m[1], b)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", label), true
		},
	},
	{
		name:    "find_by_property",
		pattern: regexp.MustCompile(`^(?i)(?:find|show|get|list)(?: me)?(?: all| the| every)? ([a-z0-9_ ]+?) (?:with|where|whose) ([a-z0-9_]+) (?:=|is|equals) '?"?(.+?)'?"?[.?!]?$`),
		build: func(m []string, b *retrieve.Bundle, limit int) (string, bool) {
			label, ok := resolveLabel(m[1], b)
			if !ok {
				return "", false
			}
			prop, ok := resolveProperty(m[2], b)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("MATCH (n:%s) WHERE n.%s = %s RETURN n LIMIT %d", label, prop, quoteLiteral(m[3]), limit), true
		},
	},
	{
		name:    "related_to",
		pattern: regexp.MustCompile(`^(?i)(?:which|what|show|list) ([a-z0-9_ ]+?) (?:are |is )?(?:related|connected|linked) to (?:the |a |an )?([a-z0-9_ ]+?)[.?!]?$`),
		build: func(m []string, b *retrieve.Bundle, limit int) (string, bool) {
			from, ok := resolveLabel(m[1], b)
			if !ok {
				return "", false
			}
			to, ok := resolveLabel(m[2], b)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("MATCH (a:%s)--(b:%s) RETURN a, b LIMIT %d", from, to, limit), true
		},
	},
}

// matchTemplate tries every template against the question. Detected scopes
// disable template matching entirely: scoped questions carry business
// meaning only the prompt path can honour.
func matchTemplate(question string, b *retrieve.Bundle, limit int) (string, string, bool) {
	if len(b.Metadata.Scopes) > 0 {
		return "", "", false
	}
	q := strings.TrimSpace(question)
	for _, t := range templates {
		m := t.pattern.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		if query, ok := t.build(m, b, limit); ok {
			return t.name, query, true
		}
	}
	return "", "", false
}

// resolveLabel maps a captured noun phrase onto a schema label, trying the
// raw token, singular forms and the space-collapsed compound against both
// the schema and the detected entity aliases.
func resolveLabel(token string, b *retrieve.Bundle) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return "", false
	}
	entityLabels := lo.Keys(b.Metadata.Entities)
	sort.Strings(entityLabels)
	for _, c := range labelCandidates(t) {
		for _, l := range b.Schema.Labels {
			if strings.EqualFold(l, c) {
				return l, true
			}
		}
		for _, label := range entityLabels {
			if strings.EqualFold(label, c) {
				return label, true
			}
			for _, alias := range b.Metadata.Entities[label].Aliases {
				if strings.EqualFold(alias, c) {
					return label, true
				}
			}
		}
	}
	return "", false
}

// labelCandidates returns the token plus singular and compound fallbacks,
// so "work orders" can reach a WorkOrder label without configuration.
func labelCandidates(t string) []string {
	out := []string{t}
	if s := strings.TrimSuffix(t, "es"); s != t {
		out = append(out, s)
	}
	if s := strings.TrimSuffix(t, "s"); s != t {
		out = append(out, s)
	}
	if collapsed := strings.ReplaceAll(t, " ", ""); collapsed != t {
		out = append(out, collapsed)
		if s := strings.TrimSuffix(collapsed, "s"); s != collapsed {
			out = append(out, s)
		}
	}
	return out
}

func resolveProperty(token string, b *retrieve.Bundle) (string, bool) {
	t := strings.TrimSpace(token)
	if t == "" {
		return "", false
	}
	for _, p := range b.Schema.Properties {
		if strings.EqualFold(p, t) {
			return p, true
		}
	}
	return "", false
}

// quoteLiteral renders a captured value as a query literal. Numbers and
// booleans pass through bare; everything else becomes an escaped
// single-quoted string.
func quoteLiteral(raw string) string {
	v := strings.TrimSpace(raw)
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	switch strings.ToLower(v) {
	case "true", "false":
		return strings.ToLower(v)
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}
