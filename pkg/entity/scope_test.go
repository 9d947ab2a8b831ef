package entity_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/graphseer/pkg/entity"
)

func TestScopeSpec_Validate_Variants(t *testing.T) {
	t.Parallel()
	min1, max3 := 1, 3
	tests := []struct {
		name    string
		spec    entity.ScopeSpec
		wantErr string // empty = valid
	}{
		{
			name: "property filter",
			spec: entity.ScopeSpec{
				Variant:  entity.VariantPropertyFilter,
				Property: "status",
				Operator: entity.OpEquals,
				Value:    "active",
			},
		},
		{
			name: "property filter without value",
			spec: entity.ScopeSpec{
				Variant:  entity.VariantPropertyFilter,
				Property: "status",
				Operator: entity.OpEquals,
			},
			wantErr: "requires a value",
		},
		{
			name: "null check needs no value",
			spec: entity.ScopeSpec{
				Variant:  entity.VariantPropertyFilter,
				Property: "deleted_at",
				Operator: entity.OpIsNull,
			},
		},
		{
			name: "property range",
			spec: entity.ScopeSpec{
				Variant:   entity.VariantPropertyRange,
				Property:  "amount",
				Low:       100,
				High:      500,
				Inclusive: true,
			},
		},
		{
			name: "range without bounds",
			spec: entity.ScopeSpec{
				Variant:  entity.VariantPropertyRange,
				Property: "amount",
			},
			wantErr: "at least one bound",
		},
		{
			name: "relationship traversal",
			spec: entity.ScopeSpec{
				Variant:    entity.VariantRelationshipTraversal,
				StartLabel: "Person",
				Path: []entity.PathStep{
					{Relationship: "HAS_ROLE", TargetLabel: "PersonTeam", Direction: entity.DirOutgoing},
				},
				Filter: &entity.TraversalFilter{
					TargetLabel: "PersonTeam",
					Property:    "role_type",
					Operator:    entity.OpEquals,
					Value:       "volunteer",
				},
				Distinct: true,
			},
		},
		{
			name: "traversal with empty path",
			spec: entity.ScopeSpec{
				Variant:    entity.VariantRelationshipTraversal,
				StartLabel: "Person",
			},
			wantErr: "path must not be empty",
		},
		{
			name: "traversal with injected step",
			spec: entity.ScopeSpec{
				Variant:    entity.VariantRelationshipTraversal,
				StartLabel: "Person",
				Path: []entity.PathStep{
					{Relationship: "HAS_ROLE; DROP", TargetLabel: "PersonTeam", Direction: entity.DirOutgoing},
				},
			},
			wantErr: "not a valid identifier",
		},
		{
			name: "entity with relationship",
			spec: entity.ScopeSpec{
				Variant:      entity.VariantEntityWithRelationship,
				Relationship: "HAS_ORDER",
				TargetLabel:  "Order",
				MinCount:     &min1,
				MaxCount:     &max3,
			},
		},
		{
			name: "min above max",
			spec: entity.ScopeSpec{
				Variant:      entity.VariantEntityWithRelationship,
				Relationship: "HAS_ORDER",
				TargetLabel:  "Order",
				MinCount:     &max3,
				MaxCount:     &min1,
			},
			wantErr: "exceeds max_count",
		},
		{
			name: "entity without relationship",
			spec: entity.ScopeSpec{
				Variant:      entity.VariantEntityWithoutRelationship,
				Relationship: "HAS_ORDER",
				TargetLabel:  "Order",
			},
		},
		{
			name: "temporal filter relative",
			spec: entity.ScopeSpec{
				Variant:  entity.VariantTemporalFilter,
				Property: "created_at",
				Window:   &entity.TimeWindow{Relative: "last_30_days"},
			},
		},
		{
			name: "temporal window fully open",
			spec: entity.ScopeSpec{
				Variant:  entity.VariantTemporalFilter,
				Property: "created_at",
				Window:   &entity.TimeWindow{},
			},
			wantErr: "fully open",
		},
		{
			name: "multi condition",
			spec: entity.ScopeSpec{
				Variant: entity.VariantMultiCondition,
				Op:      entity.BoolAnd,
				Children: []entity.ScopeSpec{
					{Variant: entity.VariantPropertyFilter, Property: "status", Operator: entity.OpEquals, Value: "active"},
					{Variant: entity.VariantPropertyFilter, Property: "deleted_at", Operator: entity.OpIsNull},
				},
			},
		},
		{
			name: "multi condition without children",
			spec: entity.ScopeSpec{
				Variant: entity.VariantMultiCondition,
				Op:      entity.BoolOr,
			},
			wantErr: "needs children",
		},
		{
			name:    "unknown variant",
			spec:    entity.ScopeSpec{Variant: "mystery"},
			wantErr: "unknown variant",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestScopeSpec_Validate_DepthBound(t *testing.T) {
	t.Parallel()
	// Build a condition tree one level deeper than the bound.
	spec := entity.ScopeSpec{
		Variant:  entity.VariantPropertyFilter,
		Property: "p",
		Operator: entity.OpIsNull,
	}
	for i := 0; i <= entity.MaxScopeDepth+1; i++ {
		spec = entity.ScopeSpec{
			Variant:  entity.VariantMultiCondition,
			Op:       entity.BoolAnd,
			Children: []entity.ScopeSpec{spec},
		}
	}
	err := spec.Validate()
	if err == nil {
		t.Fatal("expected depth violation")
	}
	if !strings.Contains(err.Error(), "deeper than") {
		t.Errorf("error should mention depth, got: %v", err)
	}
}

func TestScopeSpec_Describe(t *testing.T) {
	t.Parallel()
	spec := entity.ScopeSpec{
		Variant:  entity.VariantPropertyFilter,
		Property: "status",
		Operator: entity.OpEquals,
		Value:    "active",
	}
	if got := spec.Describe(); got != "status equals active" {
		t.Errorf("Describe() = %q", got)
	}
}
