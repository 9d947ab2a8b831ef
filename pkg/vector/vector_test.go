package vector_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/graphseer/pkg/vector"
	"github.com/MrWong99/graphseer/pkg/vector/mock"
)

func TestPointID_Deterministic(t *testing.T) {
	t.Parallel()

	a := vector.PointID("Person", "p1")
	b := vector.PointID("Person", "p1")
	if a != b {
		t.Errorf("PointID not stable: %q vs %q", a, b)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("PointID %q is not a UUID: %v", a, err)
	}
}

func TestPointID_DistinctEntities(t *testing.T) {
	t.Parallel()

	ids := map[string]string{
		"Person/p1": vector.PointID("Person", "p1"),
		"Person/p2": vector.PointID("Person", "p2"),
		"Team/p1":   vector.PointID("Team", "p1"),
	}
	seen := map[string]string{}
	for entity, id := range ids {
		if prev, ok := seen[id]; ok {
			t.Errorf("PointID collision between %s and %s", prev, entity)
		}
		seen[id] = entity
	}
}

func TestApplySearchOpts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []vector.SearchOpt
		want vector.SearchParams
	}{
		{
			name: "defaults",
			opts: nil,
			want: vector.SearchParams{TopK: vector.DefaultTopK},
		},
		{
			name: "top k below one falls back",
			opts: []vector.SearchOpt{vector.WithTopK(0)},
			want: vector.SearchParams{TopK: vector.DefaultTopK},
		},
		{
			name: "explicit values",
			opts: []vector.SearchOpt{
				vector.WithTopK(5),
				vector.WithThreshold(0.7),
				vector.WithFieldMatch(vector.PayloadEntityLabel, "Person"),
				vector.WithFieldMatch(vector.PayloadEntityID, "p1"),
			},
			want: vector.SearchParams{
				TopK:      5,
				Threshold: 0.7,
				Matches: []vector.FieldMatch{
					{Field: vector.PayloadEntityLabel, Value: "Person"},
					{Field: vector.PayloadEntityID, Value: "p1"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := vector.ApplySearchOpts(tt.opts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ApplySearchOpts() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	store := &mock.Store{CollectionExistsResult: false}
	if err := vector.EnsureCollection(context.Background(), store, "people", 4); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if got := store.CallCount("CreateCollection"); got != 1 {
		t.Errorf("CreateCollection calls = %d, want 1", got)
	}
}

func TestEnsureCollection_SkipsWhenPresent(t *testing.T) {
	t.Parallel()

	store := &mock.Store{CollectionExistsResult: true}
	if err := vector.EnsureCollection(context.Background(), store, "people", 4); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if got := store.CallCount("CreateCollection"); got != 0 {
		t.Errorf("CreateCollection calls = %d, want 0", got)
	}
}

func TestEnsureCollection_WrapsProbeError(t *testing.T) {
	t.Parallel()

	probeErr := errors.New("connection refused")
	store := &mock.Store{CollectionExistsErr: probeErr}
	err := vector.EnsureCollection(context.Background(), store, "people", 4)
	if err == nil {
		t.Fatal("EnsureCollection succeeded, want error")
	}
	if !errors.Is(err, probeErr) {
		t.Errorf("error chain lost the probe failure: %v", err)
	}
}
