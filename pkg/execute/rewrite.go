package execute

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/graphseer/pkg/errs"
)

var (
	quotedSpan    = regexp.MustCompile(`'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`)
	limitAny      = regexp.MustCompile(`(?i)\blimit\s+(\d+)`)
	limitTail     = regexp.MustCompile(`(?i)\s+limit\s+\d+\s*$`)
	skipTail      = regexp.MustCompile(`(?i)\s+skip\s+\d+\s*$`)
	returnClause  = regexp.MustCompile(`(?i)\breturn\b`)
	soleAggregate = regexp.MustCompile(`(?i)\breturn\s+(?:distinct\s+)?(?:count|sum|avg|min|max)\s*\([^)]*\)(?:\s+as\s+[A-Za-z_][A-Za-z0-9_]*)?\s*;?\s*$`)
)

// blankLiterals replaces quoted string literals with spaces of the same
// length, so clause offsets found in the blanked text are valid in the
// original.
func blankLiterals(q string) string {
	return quotedSpan.ReplaceAllStringFunc(q, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

func trimQuery(query string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
}

// ensureRowCap guarantees the query carries a row cap no larger than
// maxAllowed. Uncapped queries get "LIMIT limit" appended; an existing
// oversized cap is rewritten down to limit. Queries whose projection is
// a single aggregate return one row and stay untouched.
func ensureRowCap(query string, limit, maxAllowed int) string {
	q := trimQuery(query)
	bare := blankLiterals(q)
	if m := limitAny.FindStringSubmatchIndex(bare); m != nil {
		n, err := strconv.Atoi(bare[m[2]:m[3]])
		if err == nil && n > maxAllowed {
			return q[:m[2]] + strconv.Itoa(limit) + q[m[3]:]
		}
		return q
	}
	if soleAggregate.MatchString(bare) {
		return q
	}
	return fmt.Sprintf("%s LIMIT %d", q, limit)
}

// stripPaging removes trailing SKIP and LIMIT clauses so pagination can
// install its own window.
func stripPaging(query string) string {
	q := trimQuery(query)
	for {
		bare := blankLiterals(q)
		if m := limitTail.FindStringIndex(bare); m != nil {
			q = strings.TrimSpace(q[:m[0]])
			continue
		}
		if m := skipTail.FindStringIndex(bare); m != nil {
			q = strings.TrimSpace(q[:m[0]])
			continue
		}
		return q
	}
}

// countRewrite swaps the final RETURN projection for a row count, so
// totals reflect the whole result set rather than one page of it.
func countRewrite(op, query string) (string, error) {
	q := stripPaging(query)
	bare := blankLiterals(q)
	locs := returnClause.FindAllStringIndex(bare, -1)
	if len(locs) == 0 {
		return "", errs.New(errs.KindInvalidInput, op, "query has no RETURN clause")
	}
	last := locs[len(locs)-1]
	return q[:last[0]] + "RETURN count(*) AS total", nil
}
