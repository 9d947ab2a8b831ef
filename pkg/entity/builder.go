package entity

import (
	"fmt"

	"github.com/MrWong99/graphseer/pkg/errs"
)

// ScopeBuilder is a host-declared filter method. It is executed exactly once
// against a recording [ScopeQuery] during auto-discovery; it must never touch
// a data store.
type ScopeBuilder func(q *ScopeQuery)

// RelationResolver maps a relation name declared on label to the synthesized
// edge type and target label. Discovery supplies one backed by the descriptor
// registry.
type RelationResolver func(label, relation string) (edgeType, targetLabel string, ok bool)

// callKind discriminates recorded builder calls.
type callKind int

const (
	callWhere callKind = iota
	callWhereIn
	callWhereNull
	callWhereNotNull
	callWhereBetween
	callWhereHas
)

type builderCall struct {
	kind     callKind
	column   string
	operator FilterOperator
	value    any
	values   []any
	low      any
	high     any
	relation string
	nested   ScopeBuilder
}

// ScopeQuery records the call sequence of a [ScopeBuilder] without executing
// anything. The recorded trace is translated into a [ScopeSpec] by
// [TranslateScope].
type ScopeQuery struct {
	calls []builderCall
}

// Where records a single property comparison.
func (q *ScopeQuery) Where(column string, op FilterOperator, value any) *ScopeQuery {
	q.calls = append(q.calls, builderCall{kind: callWhere, column: column, operator: op, value: value})
	return q
}

// WhereIn records a membership test against a fixed value set.
func (q *ScopeQuery) WhereIn(column string, values ...any) *ScopeQuery {
	q.calls = append(q.calls, builderCall{kind: callWhereIn, column: column, values: values})
	return q
}

// WhereNull records a null check.
func (q *ScopeQuery) WhereNull(column string) *ScopeQuery {
	q.calls = append(q.calls, builderCall{kind: callWhereNull, column: column})
	return q
}

// WhereNotNull records a not-null check.
func (q *ScopeQuery) WhereNotNull(column string) *ScopeQuery {
	q.calls = append(q.calls, builderCall{kind: callWhereNotNull, column: column})
	return q
}

// WhereBetween records an inclusive range check.
func (q *ScopeQuery) WhereBetween(column string, low, high any) *ScopeQuery {
	q.calls = append(q.calls, builderCall{kind: callWhereBetween, column: column, low: low, high: high})
	return q
}

// WhereHas records an existence test over a named relation, with an optional
// nested builder applied to the related entity. Nested WhereHas calls extend
// the traversal path.
func (q *ScopeQuery) WhereHas(relation string, nested ScopeBuilder) *ScopeQuery {
	q.calls = append(q.calls, builderCall{kind: callWhereHas, relation: relation, nested: nested})
	return q
}

// TranslateScope runs build against a fresh recording query and translates
// the captured trace into a [ScopeSpec] for an entity labelled startLabel.
//
// Translation rules:
//   - one Where → property_filter; several top-level conditions → an AND
//     multi_condition over their individual translations
//   - WhereIn → property_filter with the "in" operator
//   - WhereNull / WhereNotNull → is_null / is_not_null filters
//   - WhereBetween → property_range (inclusive)
//   - WhereHas → relationship_traversal; nested WhereHas extends the path,
//     a nested property condition becomes the traversal filter
//
// Traversal nesting deeper than [MaxScopeDepth] aborts the whole scope.
// Non-fatal losses (a second nested condition that the single-filter
// traversal form cannot carry) are reported as warnings.
func TranslateScope(startLabel string, build ScopeBuilder, resolve RelationResolver) (spec ScopeSpec, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Newf(errs.KindConfiguration, "scope", "builder for %s panicked: %v", startLabel, r)
		}
	}()

	q := &ScopeQuery{}
	build(q)

	return translateCalls(q.calls, startLabel, resolve, 0)
}

// translateCalls converts a recorded call sequence at the given traversal
// depth into a single spec.
func translateCalls(calls []builderCall, label string, resolve RelationResolver, depth int) (ScopeSpec, []string, error) {
	if len(calls) == 0 {
		return ScopeSpec{}, nil, errs.Newf(errs.KindConfiguration, "scope", "builder for %s recorded no conditions", label)
	}

	var (
		specs    []ScopeSpec
		warnings []string
	)
	for _, c := range calls {
		s, w, err := translateCall(c, label, resolve, depth)
		if err != nil {
			return ScopeSpec{}, nil, err
		}
		warnings = append(warnings, w...)
		specs = append(specs, s)
	}

	if len(specs) == 1 {
		return specs[0], warnings, nil
	}
	return ScopeSpec{Variant: VariantMultiCondition, Op: BoolAnd, Children: specs}, warnings, nil
}

func translateCall(c builderCall, label string, resolve RelationResolver, depth int) (ScopeSpec, []string, error) {
	switch c.kind {
	case callWhere:
		if !c.operator.IsValid() {
			return ScopeSpec{}, nil, errs.Newf(errs.KindConfiguration, "scope", "unknown operator %q on %s.%s", string(c.operator), label, c.column)
		}
		return ScopeSpec{Variant: VariantPropertyFilter, Property: c.column, Operator: c.operator, Value: c.value}, nil, nil

	case callWhereIn:
		return ScopeSpec{Variant: VariantPropertyFilter, Property: c.column, Operator: OpIn, Value: c.values}, nil, nil

	case callWhereNull:
		return ScopeSpec{Variant: VariantPropertyFilter, Property: c.column, Operator: OpIsNull}, nil, nil

	case callWhereNotNull:
		return ScopeSpec{Variant: VariantPropertyFilter, Property: c.column, Operator: OpIsNotNull}, nil, nil

	case callWhereBetween:
		return ScopeSpec{Variant: VariantPropertyRange, Property: c.column, Low: c.low, High: c.high, Inclusive: true}, nil, nil

	case callWhereHas:
		return translateHas(c, label, resolve, depth)

	default:
		return ScopeSpec{}, nil, errs.Newf(errs.KindConfiguration, "scope", "unknown builder call kind %d", int(c.kind))
	}
}

// translateHas builds a relationship_traversal from a WhereHas call,
// following nested WhereHas calls to extend the path.
func translateHas(c builderCall, label string, resolve RelationResolver, depth int) (ScopeSpec, []string, error) {
	if depth+1 > MaxScopeDepth {
		return ScopeSpec{}, nil, errs.Newf(errs.KindConfiguration, "scope",
			"traversal through %s.%s exceeds depth %d", label, c.relation, MaxScopeDepth)
	}

	edgeType, target, ok := resolve(label, c.relation)
	if !ok {
		return ScopeSpec{}, nil, errs.Newf(errs.KindConfiguration, "scope", "unknown relation %s.%s", label, c.relation)
	}

	spec := ScopeSpec{
		Variant:    VariantRelationshipTraversal,
		StartLabel: label,
		Path:       []PathStep{{Relationship: edgeType, TargetLabel: target, Direction: DirOutgoing}},
		Distinct:   true,
	}

	if c.nested == nil {
		return spec, nil, nil
	}

	nq := &ScopeQuery{}
	c.nested(nq)

	var (
		warnings   []string
		hasCalls   []builderCall
		propCalls  []builderCall
		finalLabel = target
	)
	for _, nc := range nq.calls {
		if nc.kind == callWhereHas {
			hasCalls = append(hasCalls, nc)
		} else {
			propCalls = append(propCalls, nc)
		}
	}

	// A nested WhereHas extends the traversal path one hop at a time.
	if len(hasCalls) > 0 {
		if len(hasCalls) > 1 {
			warnings = append(warnings, fmt.Sprintf("%s.%s: traversal keeps only the first nested relation", label, c.relation))
		}
		sub, w, err := translateHas(hasCalls[0], target, resolve, depth+1)
		if err != nil {
			return ScopeSpec{}, nil, err
		}
		warnings = append(warnings, w...)
		spec.Path = append(spec.Path, sub.Path...)
		spec.Filter = sub.Filter
		if len(sub.Path) > 0 {
			finalLabel = sub.Path[len(sub.Path)-1].TargetLabel
		}
	}

	// A nested property condition becomes the filter at the path's end.
	// The traversal form carries exactly one; extras are dropped with a
	// warning.
	if len(propCalls) > 0 {
		if spec.Filter != nil || len(propCalls) > 1 {
			warnings = append(warnings, fmt.Sprintf("%s.%s: traversal filter keeps only the first condition", label, c.relation))
		}
		if spec.Filter == nil {
			f, w, err := traversalFilter(propCalls[0], finalLabel)
			if err != nil {
				return ScopeSpec{}, nil, err
			}
			warnings = append(warnings, w...)
			spec.Filter = f
		}
	}

	return spec, warnings, nil
}

// traversalFilter converts a single recorded property condition into the
// one-condition filter form a traversal carries.
func traversalFilter(c builderCall, targetLabel string) (*TraversalFilter, []string, error) {
	switch c.kind {
	case callWhere:
		return &TraversalFilter{TargetLabel: targetLabel, Property: c.column, Operator: c.operator, Value: c.value}, nil, nil
	case callWhereIn:
		return &TraversalFilter{TargetLabel: targetLabel, Property: c.column, Operator: OpIn, Value: c.values}, nil, nil
	case callWhereNull:
		return &TraversalFilter{TargetLabel: targetLabel, Property: c.column, Operator: OpIsNull}, nil, nil
	case callWhereNotNull:
		return &TraversalFilter{TargetLabel: targetLabel, Property: c.column, Operator: OpIsNotNull}, nil, nil
	case callWhereBetween:
		// The single-condition filter form cannot carry a range; fall back to
		// the lower bound and warn.
		w := fmt.Sprintf("%s.%s: range condition reduced to greater_or_equal", targetLabel, c.column)
		return &TraversalFilter{TargetLabel: targetLabel, Property: c.column, Operator: OpGreaterOrEqual, Value: c.low}, []string{w}, nil
	default:
		return nil, nil, errs.Newf(errs.KindConfiguration, "scope", "condition kind %d cannot filter a traversal", int(c.kind))
	}
}
