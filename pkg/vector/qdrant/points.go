package qdrant

import (
	"context"
	"strconv"

	qdrantcli "github.com/qdrant/go-client/qdrant"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Upsert implements [vector.Store]. Writes wait for server-side completion
// so a returned nil means the points are durable.
func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}
	pts := make([]*qdrantcli.PointStruct, 0, len(points))
	for _, p := range points {
		if p.ID == "" {
			return errs.New(errs.KindInvalidInput, "qdrant store: upsert", "point id must not be empty")
		}
		pts = append(pts, &qdrantcli.PointStruct{
			Id:      qdrantcli.NewID(p.ID),
			Vectors: qdrantcli.NewVectors(p.Vector...),
			Payload: qdrantcli.NewValueMap(p.Payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrantcli.UpsertPoints{
		CollectionName: collection,
		Points:         pts,
		Wait:           qdrantcli.PtrOf(true),
	})
	if err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "qdrant store", err, "upsert %d points into %q", len(pts), collection)
	}
	return nil
}

// Search implements [vector.Store].
func (s *Store) Search(ctx context.Context, collection string, vec []float32, opts ...vector.SearchOpt) ([]vector.Match, error) {
	p := vector.ApplySearchOpts(opts)

	req := &qdrantcli.QueryPoints{
		CollectionName: collection,
		Query:          qdrantcli.NewQuery(vec...),
		Limit:          qdrantcli.PtrOf(uint64(p.TopK)),
		WithPayload:    qdrantcli.NewWithPayload(true),
	}
	if p.Threshold > 0 {
		req.ScoreThreshold = qdrantcli.PtrOf(float32(p.Threshold))
	}
	if len(p.Matches) > 0 {
		must := make([]*qdrantcli.Condition, 0, len(p.Matches))
		for _, m := range p.Matches {
			must = append(must, qdrantcli.NewMatch(m.Field, m.Value))
		}
		req.Filter = &qdrantcli.Filter{Must: must}
	}

	scored, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, errs.Wrapf(errs.KindQueryExecution, "qdrant store", err, "search %q", collection)
	}

	matches := make([]vector.Match, 0, len(scored))
	for _, sp := range scored {
		matches = append(matches, vector.Match{
			ID:      pointIDString(sp.GetId()),
			Score:   float64(sp.GetScore()),
			Payload: payloadToMap(sp.GetPayload()),
		})
	}
	return matches, nil
}

// Delete implements [vector.Store]. Deleting a point that does not exist is
// not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Delete(ctx, &qdrantcli.DeletePoints{
		CollectionName: collection,
		Points:         qdrantcli.NewPointsSelector(qdrantcli.NewID(id)),
		Wait:           qdrantcli.PtrOf(true),
	})
	if err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "qdrant store", err, "delete point from %q", collection)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Payload conversion
// ─────────────────────────────────────────────────────────────────────────────

// pointIDString renders a Qdrant point id as the contract's string form.
func pointIDString(id *qdrantcli.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// payloadToMap converts a stored payload back into plain Go values.
// Returns an empty (non-nil) map for an empty payload.
func payloadToMap(payload map[string]*qdrantcli.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

// valueToAny unwraps one protobuf payload value. Integers stay int64 and
// doubles float64 so downstream formatting matches the graph adapter's
// scalar types.
func valueToAny(v *qdrantcli.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrantcli.Value_NullValue:
		return nil
	case *qdrantcli.Value_BoolValue:
		return kind.BoolValue
	case *qdrantcli.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrantcli.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrantcli.Value_StringValue:
		return kind.StringValue
	case *qdrantcli.Value_ListValue:
		values := kind.ListValue.GetValues()
		list := make([]any, 0, len(values))
		for _, item := range values {
			list = append(list, valueToAny(item))
		}
		return list
	case *qdrantcli.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
