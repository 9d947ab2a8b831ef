package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/graphseer/pkg/errs"
)

// MaxScopeDepth bounds both scope translation and nested condition trees.
// Anything deeper is aborted with a warning rather than translated.
const MaxScopeDepth = 5

// ScopeDef is a named business predicate attached to an entity: the
// declarative spec plus the prose the query generator feeds to the LLM.
type ScopeDef struct {
	// Spec is the declarative predicate. Never contains query-language text.
	Spec ScopeSpec `yaml:"spec" json:"spec"`

	// Concept is a one-line prose statement of what the scope means.
	Concept string `yaml:"concept,omitempty" json:"concept,omitempty"`

	// BusinessRules are prose invariants the generated query must respect.
	BusinessRules []string `yaml:"business_rules,omitempty" json:"business_rules,omitempty"`

	// Examples are natural-language phrasings that refer to this scope.
	Examples []string `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// ScopeVariant discriminates the ScopeSpec union.
type ScopeVariant string

const (
	VariantPropertyFilter            ScopeVariant = "property_filter"
	VariantPropertyRange             ScopeVariant = "property_range"
	VariantRelationshipTraversal     ScopeVariant = "relationship_traversal"
	VariantEntityWithRelationship    ScopeVariant = "entity_with_relationship"
	VariantEntityWithoutRelationship ScopeVariant = "entity_without_relationship"
	VariantTemporalFilter            ScopeVariant = "temporal_filter"
	VariantMultiCondition            ScopeVariant = "multi_condition"
)

// IsValid reports whether v is a recognised scope variant.
func (v ScopeVariant) IsValid() bool {
	switch v {
	case VariantPropertyFilter, VariantPropertyRange, VariantRelationshipTraversal,
		VariantEntityWithRelationship, VariantEntityWithoutRelationship,
		VariantTemporalFilter, VariantMultiCondition:
		return true
	}
	return false
}

// FilterOperator enumerates the comparison operators a property filter may
// use. The names are deliberately language-neutral; translation into query
// syntax happens only inside the LLM prompt's pattern examples.
type FilterOperator string

const (
	OpEquals         FilterOperator = "equals"
	OpNotEquals      FilterOperator = "not_equals"
	OpGreaterThan    FilterOperator = "greater_than"
	OpGreaterOrEqual FilterOperator = "greater_or_equal"
	OpLessThan       FilterOperator = "less_than"
	OpLessOrEqual    FilterOperator = "less_or_equal"
	OpIn             FilterOperator = "in"
	OpContains       FilterOperator = "contains"
	OpStartsWith     FilterOperator = "starts_with"
	OpIsNull         FilterOperator = "is_null"
	OpIsNotNull      FilterOperator = "is_not_null"
)

// IsValid reports whether op is a recognised filter operator.
func (op FilterOperator) IsValid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterOrEqual, OpLessThan,
		OpLessOrEqual, OpIn, OpContains, OpStartsWith, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// needsValue reports whether the operator carries a comparison value.
func (op FilterOperator) needsValue() bool {
	return op != OpIsNull && op != OpIsNotNull
}

// Direction of a traversal path step.
type Direction string

const (
	DirOutgoing   Direction = "outgoing"
	DirIncoming   Direction = "incoming"
	DirUndirected Direction = "undirected"
)

// IsValid reports whether d is a recognised direction.
func (d Direction) IsValid() bool {
	return d == DirOutgoing || d == DirIncoming || d == DirUndirected
}

// BoolOp combines children of a multi_condition scope.
type BoolOp string

const (
	BoolAnd BoolOp = "and"
	BoolOr  BoolOp = "or"
)

// PathStep is one hop of a relationship traversal.
type PathStep struct {
	Relationship string    `yaml:"relationship" json:"relationship"`
	TargetLabel  string    `yaml:"target_label" json:"target_label"`
	Direction    Direction `yaml:"direction" json:"direction"`
}

// TraversalFilter is a single property condition applied at the end of a
// traversal path.
type TraversalFilter struct {
	TargetLabel string         `yaml:"target_label" json:"target_label"`
	Property    string         `yaml:"property" json:"property"`
	Operator    FilterOperator `yaml:"operator" json:"operator"`
	Value       any            `yaml:"value,omitempty" json:"value,omitempty"`
}

// TimeWindow bounds a temporal filter. Either absolute endpoints, a relative
// description ("last_30_days"), or both endpoints open.
type TimeWindow struct {
	From     *time.Time `yaml:"from,omitempty" json:"from,omitempty"`
	To       *time.Time `yaml:"to,omitempty" json:"to,omitempty"`
	Relative string     `yaml:"relative,omitempty" json:"relative,omitempty"`
}

// ScopeSpec is the tagged variant describing one declarative predicate.
// Variant selects which field group is meaningful; [ScopeSpec.Validate]
// rejects specs whose populated fields disagree with the variant.
//
// ScopeSpecs are data, never behavior: they serialize into prompts verbatim
// and are forbidden from carrying query-language tokens.
type ScopeSpec struct {
	Variant ScopeVariant `yaml:"variant" json:"variant"`

	// property_filter
	Property string         `yaml:"property,omitempty" json:"property,omitempty"`
	Operator FilterOperator `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value    any            `yaml:"value,omitempty" json:"value,omitempty"`

	// property_range
	Low       any  `yaml:"low,omitempty" json:"low,omitempty"`
	High      any  `yaml:"high,omitempty" json:"high,omitempty"`
	Inclusive bool `yaml:"inclusive,omitempty" json:"inclusive,omitempty"`

	// relationship_traversal
	StartLabel string           `yaml:"start_label,omitempty" json:"start_label,omitempty"`
	Path       []PathStep       `yaml:"path,omitempty" json:"path,omitempty"`
	Filter     *TraversalFilter `yaml:"filter,omitempty" json:"filter,omitempty"`
	Distinct   bool             `yaml:"distinct,omitempty" json:"distinct,omitempty"`

	// entity_with_relationship / entity_without_relationship
	Relationship string `yaml:"relationship,omitempty" json:"relationship,omitempty"`
	TargetLabel  string `yaml:"target_label,omitempty" json:"target_label,omitempty"`
	MinCount     *int   `yaml:"min_count,omitempty" json:"min_count,omitempty"`
	MaxCount     *int   `yaml:"max_count,omitempty" json:"max_count,omitempty"`

	// temporal_filter (reuses Property)
	Window *TimeWindow `yaml:"window,omitempty" json:"window,omitempty"`

	// multi_condition
	Op       BoolOp      `yaml:"op,omitempty" json:"op,omitempty"`
	Children []ScopeSpec `yaml:"children,omitempty" json:"children,omitempty"`
}

// Validate checks the spec's structure and every identifier it carries.
func (s *ScopeSpec) Validate() error {
	return s.validate(0)
}

func (s *ScopeSpec) validate(depth int) error {
	if depth > MaxScopeDepth {
		return errs.Newf(errs.KindConfiguration, "scope", "condition tree deeper than %d", MaxScopeDepth)
	}
	if !s.Variant.IsValid() {
		return errs.Newf(errs.KindConfiguration, "scope", "unknown variant %q", string(s.Variant))
	}

	switch s.Variant {
	case VariantPropertyFilter:
		if err := CheckIdentifier("filter property", s.Property); err != nil {
			return err
		}
		if !s.Operator.IsValid() {
			return errs.Newf(errs.KindConfiguration, "scope", "unknown operator %q", string(s.Operator))
		}
		if s.Operator.needsValue() && s.Value == nil {
			return errs.Newf(errs.KindConfiguration, "scope", "operator %s requires a value", s.Operator)
		}

	case VariantPropertyRange:
		if err := CheckIdentifier("range property", s.Property); err != nil {
			return err
		}
		if s.Low == nil && s.High == nil {
			return errs.New(errs.KindConfiguration, "scope", "property range needs at least one bound")
		}

	case VariantRelationshipTraversal:
		if err := CheckIdentifier("traversal start", s.StartLabel); err != nil {
			return err
		}
		if len(s.Path) == 0 {
			return errs.New(errs.KindConfiguration, "scope", "traversal path must not be empty")
		}
		for _, step := range s.Path {
			if err := CheckIdentifier("path relationship", step.Relationship); err != nil {
				return err
			}
			if err := CheckIdentifier("path target", step.TargetLabel); err != nil {
				return err
			}
			if !step.Direction.IsValid() {
				return errs.Newf(errs.KindConfiguration, "scope", "unknown direction %q", string(step.Direction))
			}
		}
		if s.Filter != nil {
			if err := CheckIdentifier("traversal filter target", s.Filter.TargetLabel); err != nil {
				return err
			}
			if err := CheckIdentifier("traversal filter property", s.Filter.Property); err != nil {
				return err
			}
			if !s.Filter.Operator.IsValid() {
				return errs.Newf(errs.KindConfiguration, "scope", "unknown filter operator %q", string(s.Filter.Operator))
			}
		}

	case VariantEntityWithRelationship, VariantEntityWithoutRelationship:
		if err := CheckIdentifier("relationship", s.Relationship); err != nil {
			return err
		}
		if err := CheckIdentifier("relationship target", s.TargetLabel); err != nil {
			return err
		}
		if s.Variant == VariantEntityWithRelationship && s.MinCount != nil && s.MaxCount != nil && *s.MinCount > *s.MaxCount {
			return errs.Newf(errs.KindConfiguration, "scope", "min_count %d exceeds max_count %d", *s.MinCount, *s.MaxCount)
		}

	case VariantTemporalFilter:
		if err := CheckIdentifier("temporal property", s.Property); err != nil {
			return err
		}
		if s.Window == nil {
			return errs.New(errs.KindConfiguration, "scope", "temporal filter needs a window")
		}
		if s.Window.From == nil && s.Window.To == nil && s.Window.Relative == "" {
			return errs.New(errs.KindConfiguration, "scope", "temporal window is fully open")
		}

	case VariantMultiCondition:
		if s.Op != BoolAnd && s.Op != BoolOr {
			return errs.Newf(errs.KindConfiguration, "scope", "unknown boolean op %q", string(s.Op))
		}
		if len(s.Children) == 0 {
			return errs.New(errs.KindConfiguration, "scope", "multi_condition needs children")
		}
		var violations []error
		for i := range s.Children {
			if err := s.Children[i].validate(depth + 1); err != nil {
				violations = append(violations, fmt.Errorf("child %d: %w", i, err))
			}
		}
		if len(violations) > 0 {
			return errors.Join(violations...)
		}
	}
	return nil
}

// Describe renders the spec as a short one-line summary used in log output
// and validation warnings. Prompt rendering uses the full YAML form instead.
func (s *ScopeSpec) Describe() string {
	switch s.Variant {
	case VariantPropertyFilter:
		return fmt.Sprintf("%s %s %v", s.Property, s.Operator, s.Value)
	case VariantPropertyRange:
		return fmt.Sprintf("%s in [%v, %v]", s.Property, s.Low, s.High)
	case VariantRelationshipTraversal:
		return fmt.Sprintf("traverse %s over %d step(s)", s.StartLabel, len(s.Path))
	case VariantEntityWithRelationship:
		return fmt.Sprintf("has %s to %s", s.Relationship, s.TargetLabel)
	case VariantEntityWithoutRelationship:
		return fmt.Sprintf("lacks %s to %s", s.Relationship, s.TargetLabel)
	case VariantTemporalFilter:
		return fmt.Sprintf("%s within window", s.Property)
	case VariantMultiCondition:
		return fmt.Sprintf("%s of %d condition(s)", s.Op, len(s.Children))
	default:
		return string(s.Variant)
	}
}
