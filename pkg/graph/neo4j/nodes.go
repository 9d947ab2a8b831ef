package neo4j

import (
	"context"
	"fmt"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cast"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
)

// UpsertNode merges the node by (Label, ID), replaces its properties and
// reconciles its outgoing edges in a single write transaction.
func (s *Store) UpsertNode(ctx context.Context, node graph.Node, edgeTypes []string, edges []graph.Edge) error {
	const op = "neo4j store: upsert node"
	if err := checkNode(node); err != nil {
		return err
	}
	for _, et := range edgeTypes {
		if err := entity.CheckIdentifier("edge type", et); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if err := checkEdge(e.Type, e.TargetLabel); err != nil {
			return err
		}
	}

	session := s.session(ctx, neo4jdrv.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		if err := mergeNode(ctx, tx, node); err != nil {
			return nil, err
		}
		for _, et := range edgeTypes {
			q := fmt.Sprintf("MATCH (n:%s {id: $id})-[r:%s]->() DELETE r", node.Label, et)
			if err := runAndConsume(ctx, tx, q, map[string]any{"id": node.ID}); err != nil {
				return nil, fmt.Errorf("clear %s edges: %w", et, err)
			}
		}
		for _, e := range edges {
			if err := mergeOutEdge(ctx, tx, node.Label, node.ID, e); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return errs.Wrap(errs.KindGraphWrite, op, err)
}

// GetNode captures the node and every edge touching it.
// Returns (nil, nil) when the node does not exist.
func (s *Store) GetNode(ctx context.Context, label, id string) (*graph.Snapshot, error) {
	const op = "neo4j store: get node"
	if err := entity.CheckIdentifier("node label", label); err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4jdrv.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN properties(n) AS props", label),
			map[string]any{"id": id})
		if err != nil {
			return nil, fmt.Errorf("match node: %w", err)
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, fmt.Errorf("match node: %w", err)
			}
			return nil, nil
		}
		props := asPropMap(res.Record().Values[0])
		delete(props, "id")
		snap := &graph.Snapshot{Node: graph.Node{Label: label, ID: id, Props: props}}

		res, err = tx.Run(ctx,
			fmt.Sprintf("MATCH (n:%s {id: $id})-[r]->(t) RETURN type(r), labels(t), t.id, properties(r)", label),
			map[string]any{"id": id})
		if err != nil {
			return nil, fmt.Errorf("match outgoing edges: %w", err)
		}
		for res.Next(ctx) {
			v := res.Record().Values
			snap.Outgoing = append(snap.Outgoing, graph.Edge{
				Type:        cast.ToString(v[0]),
				TargetLabel: firstLabel(v[1]),
				TargetID:    cast.ToString(v[2]),
				Props:       asPropMap(v[3]),
			})
		}
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("match outgoing edges: %w", err)
		}

		res, err = tx.Run(ctx,
			fmt.Sprintf("MATCH (src)-[r]->(n:%s {id: $id}) RETURN type(r), labels(src), src.id, properties(r)", label),
			map[string]any{"id": id})
		if err != nil {
			return nil, fmt.Errorf("match incoming edges: %w", err)
		}
		for res.Next(ctx) {
			v := res.Record().Values
			snap.Incoming = append(snap.Incoming, graph.InEdge{
				Type:        cast.ToString(v[0]),
				SourceLabel: firstLabel(v[1]),
				SourceID:    cast.ToString(v[2]),
				Props:       asPropMap(v[3]),
			})
		}
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("match incoming edges: %w", err)
		}
		return snap, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, op, err)
	}
	if out == nil {
		return nil, nil
	}
	return out.(*graph.Snapshot), nil
}

// DeleteNode removes the node and every edge touching it.
// Deleting a non-existent node is not an error.
func (s *Store) DeleteNode(ctx context.Context, label, id string) error {
	const op = "neo4j store: delete node"
	if err := entity.CheckIdentifier("node label", label); err != nil {
		return err
	}

	session := s.session(ctx, neo4jdrv.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		q := fmt.Sprintf("MATCH (n:%s {id: $id}) DETACH DELETE n", label)
		return nil, runAndConsume(ctx, tx, q, map[string]any{"id": id})
	})
	return errs.Wrap(errs.KindGraphWrite, op, err)
}

// RestoreNode recreates a previously captured snapshot: the node, its
// outgoing edges and its incoming edges.
func (s *Store) RestoreNode(ctx context.Context, snap graph.Snapshot) error {
	const op = "neo4j store: restore node"
	if err := checkNode(snap.Node); err != nil {
		return err
	}
	for _, e := range snap.Outgoing {
		if err := checkEdge(e.Type, e.TargetLabel); err != nil {
			return err
		}
	}
	for _, e := range snap.Incoming {
		if err := checkEdge(e.Type, e.SourceLabel); err != nil {
			return err
		}
	}

	session := s.session(ctx, neo4jdrv.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		if err := mergeNode(ctx, tx, snap.Node); err != nil {
			return nil, err
		}
		for _, e := range snap.Outgoing {
			if err := mergeOutEdge(ctx, tx, snap.Node.Label, snap.Node.ID, e); err != nil {
				return nil, err
			}
		}
		for _, e := range snap.Incoming {
			q := fmt.Sprintf(
				"MATCH (n:%s {id: $id}) MERGE (src:%s {id: $source}) MERGE (src)-[r:%s]->(n) SET r = $props",
				snap.Node.Label, e.SourceLabel, e.Type)
			params := map[string]any{"id": snap.Node.ID, "source": e.SourceID, "props": orEmpty(e.Props)}
			if err := runAndConsume(ctx, tx, q, params); err != nil {
				return nil, fmt.Errorf("restore %s edge from %s %q: %w", e.Type, e.SourceLabel, e.SourceID, err)
			}
		}
		return nil, nil
	})
	return errs.Wrap(errs.KindGraphWrite, op, err)
}

// mergeNode upserts the node and replaces all its properties.
func mergeNode(ctx context.Context, tx neo4jdrv.ManagedTransaction, node graph.Node) error {
	q := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n = $props, n.id = $id", node.Label)
	if err := runAndConsume(ctx, tx, q, map[string]any{"id": node.ID, "props": orEmpty(node.Props)}); err != nil {
		return fmt.Errorf("merge node %q: %w", node.ID, err)
	}
	return nil
}

// mergeOutEdge creates one outgoing edge, stubbing the target when missing.
func mergeOutEdge(ctx context.Context, tx neo4jdrv.ManagedTransaction, label, id string, e graph.Edge) error {
	q := fmt.Sprintf(
		"MATCH (n:%s {id: $id}) MERGE (t:%s {id: $target}) MERGE (n)-[r:%s]->(t) SET r = $props",
		label, e.TargetLabel, e.Type)
	params := map[string]any{"id": id, "target": e.TargetID, "props": orEmpty(e.Props)}
	if err := runAndConsume(ctx, tx, q, params); err != nil {
		return fmt.Errorf("merge %s edge to %s %q: %w", e.Type, e.TargetLabel, e.TargetID, err)
	}
	return nil
}

// runAndConsume executes a statement and drains its result so server-side
// failures surface inside the transaction rather than at commit.
func runAndConsume(ctx context.Context, tx neo4jdrv.ManagedTransaction, query string, params map[string]any) error {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func checkNode(node graph.Node) error {
	if err := entity.CheckIdentifier("node label", node.Label); err != nil {
		return err
	}
	if node.ID == "" {
		return errs.New(errs.KindInvalidInput, "neo4j store", "node id must not be empty")
	}
	return nil
}

func checkEdge(relType, label string) error {
	if err := entity.CheckIdentifier("edge type", relType); err != nil {
		return err
	}
	return entity.CheckIdentifier("edge label", label)
}

// firstLabel picks the primary label from a labels() value. Multi-label
// nodes are reported under their first label.
func firstLabel(v any) string {
	labels, ok := v.([]any)
	if !ok || len(labels) == 0 {
		return ""
	}
	return cast.ToString(labels[0])
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
