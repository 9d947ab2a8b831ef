package querygen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/samber/lo"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

// Report is the outcome of validating one query. Errors block execution,
// warnings lower confidence but let the query through.
type Report struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Complexity int      `json:"complexity"`

	unsafe bool
}

// Complexity penalties. A query whose total exceeds the configured limit
// is rejected rather than executed.
const (
	penaltyUnboundedPath = 40
	penaltyCartesian     = 30
	penaltyUnlabeledNode = 25
	penaltyMissingCap    = 20
	penaltyBoundedPath   = 15
)

// suggestionThreshold is the Jaro-Winkler score above which an unknown
// identifier earns a "did you mean" hint.
const suggestionThreshold = 0.85

var (
	labelToken    = regexp.MustCompile(`\(\s*[A-Za-z_0-9]*\s*:\s*([^\s){]+)`)
	relToken      = regexp.MustCompile(`\[\s*[A-Za-z_0-9]*\s*:\s*([^\s\]{*]+)`)
	propToken     = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*\.\s*([^\s,)\]}=<>!+\-*/%^]+)`)
	nodeToken     = regexp.MustCompile(`\(\s*[a-z][A-Za-z0-9_]*\s*\)|\(\s*\)`)
	varLengthPath = regexp.MustCompile(`\[[^\]]*\*[^\]]*\]`)
	exactHops     = regexp.MustCompile(`\*\s*\d+\s*\]`)
	upperBound    = regexp.MustCompile(`\.\.\s*\d+`)
	matchClause   = regexp.MustCompile(`(?i)\bmatch\b`)
	whereClause   = regexp.MustCompile(`(?i)\bwhere\b`)
	limitClause   = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	queryShape    = regexp.MustCompile(`(?i)\b(?:match|return|call|unwind|create|merge)\b`)
	soleAggregate = regexp.MustCompile(`(?i)\breturn\s+(?:distinct\s+)?(?:count|sum|avg|min|max)\s*\([^)]*\)(?:\s+as\s+[A-Za-z_][A-Za-z0-9_]*)?\s*;?\s*$`)
	quotedSpan    = regexp.MustCompile(`'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`)
)

// Validate checks query text against the safety and complexity rules
// without executing anything. schema may be nil; membership checks are
// then skipped while the structural checks still run.
func (g *Generator) Validate(query string, schema *retrieve.SchemaSummary, opts ...Option) Report {
	return validate(query, schema, g.resolve(opts))
}

func validate(query string, schema *retrieve.SchemaSummary, cfg settings) Report {
	var rep Report
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		rep.Errors = append(rep.Errors, "empty query")
		return rep
	}
	stripped := stripLiterals(trimmed)
	if !queryShape.MatchString(stripped) {
		rep.Errors = append(rep.Errors, "not a graph query")
		return rep
	}

	if kw, found := entity.FindWriteKeyword(stripped); found && !cfg.allowWrite {
		rep.unsafe = true
		rep.Errors = append(rep.Errors, fmt.Sprintf("write operation %q is not allowed", kw))
	}

	checkIdentifiers(stripped, schema, &rep)

	rep.Complexity = complexity(stripped)
	if rep.Complexity > cfg.maxComplexity {
		rep.Errors = append(rep.Errors, fmt.Sprintf("complexity %d exceeds limit %d", rep.Complexity, cfg.maxComplexity))
	}
	if !rowCapped(stripped) {
		rep.Warnings = append(rep.Warnings, "query has no row cap")
	}

	rep.Valid = len(rep.Errors) == 0
	return rep
}

// Err converts a failed report into a kinded error, nil when valid.
func (r Report) Err(op string) error {
	if r.Valid {
		return nil
	}
	msg := strings.Join(r.Errors, "; ")
	if r.unsafe {
		return errs.New(errs.KindUnsafeQuery, op, msg)
	}
	return errs.New(errs.KindQueryValidation, op, msg)
}

// Sanitize normalizes query text for execution: trims whitespace and a
// trailing semicolon, and appends a row cap when none is present.
func (g *Generator) Sanitize(query string, opts ...Option) string {
	return sanitize(query, g.resolve(opts))
}

func sanitize(query string, cfg settings) string {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	q = strings.TrimSpace(q)
	if q == "" {
		return q
	}
	if !rowCapped(stripLiterals(q)) {
		q = fmt.Sprintf("%s LIMIT %d", q, cfg.rowLimit)
	}
	return q
}

// stripLiterals blanks out quoted strings so keyword and identifier scans
// never fire on user data.
func stripLiterals(q string) string {
	return quotedSpan.ReplaceAllStringFunc(q, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

func checkIdentifiers(q string, schema *retrieve.SchemaSummary, rep *Report) {
	type group struct {
		what  string
		found []string
		known []string
		has   func(string) bool
	}
	groups := []group{
		{what: "label", found: captures(labelToken, q)},
		{what: "relationship type", found: captures(relToken, q)},
		{what: "property", found: captures(propToken, q)},
	}
	if schema != nil {
		groups[0].known, groups[0].has = schema.Labels, schema.HasLabel
		groups[1].known, groups[1].has = schema.Relationships, schema.HasRelationship
		groups[2].known, groups[2].has = schema.Properties, schema.HasProperty
	}
	for _, grp := range groups {
		for _, tok := range grp.found {
			if err := entity.CheckIdentifier(grp.what, tok); err != nil {
				rep.Errors = append(rep.Errors, err.Error())
				continue
			}
			if grp.has != nil && len(grp.known) > 0 && !grp.has(tok) {
				rep.Warnings = append(rep.Warnings, unknownIdentifier(grp.what, tok, grp.known))
			}
		}
	}
}

func captures(re *regexp.Regexp, q string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(q, -1) {
		out = append(out, m[1])
	}
	return lo.Uniq(out)
}

// unknownIdentifier builds the warning for an identifier missing from the
// schema, suggesting the closest known one when it is close enough.
func unknownIdentifier(what, tok string, known []string) string {
	best, score := "", 0.0
	for _, k := range known {
		if s := matchr.JaroWinkler(strings.ToLower(tok), strings.ToLower(k), false); s > score {
			best, score = k, s
		}
	}
	if score >= suggestionThreshold {
		return fmt.Sprintf("unknown %s %q, did you mean %q?", what, tok, best)
	}
	return fmt.Sprintf("unknown %s %q", what, tok)
}

func complexity(q string) int {
	score := penaltyUnlabeledNode * unlabeledNodes(q)
	for _, m := range varLengthPath.FindAllString(q, -1) {
		if exactHops.MatchString(m) || upperBound.MatchString(m) {
			score += penaltyBoundedPath
		} else {
			score += penaltyUnboundedPath
		}
	}
	if len(matchClause.FindAllString(q, -1)) >= 2 && !whereClause.MatchString(q) {
		score += penaltyCartesian
	}
	if !rowCapped(q) {
		score += penaltyMissingCap
	}
	return score
}

// unlabeledNodes counts node patterns without a label, skipping matches
// that are really function calls like count(n).
func unlabeledNodes(q string) int {
	n := 0
	for _, loc := range nodeToken.FindAllStringIndex(q, -1) {
		if loc[0] > 0 && isIdentByte(q[loc[0]-1]) {
			continue
		}
		n++
	}
	return n
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// rowCapped reports whether the query bounds its result rows, either with
// an explicit LIMIT or by returning a single aggregate.
func rowCapped(q string) bool {
	return limitClause.MatchString(q) || soleAggregate.MatchString(q)
}
