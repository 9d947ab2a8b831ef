package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/graphseer/pkg/engine"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/ingest"
)

// askArgs is the input for the "ask" tool.
type askArgs struct {
	// Question is the natural-language question to answer.
	Question string `json:"question" jsonschema:"natural-language question to answer from the knowledge graph"`
}

// askResult is the output of the "ask" tool.
type askResult struct {
	// Answer is the narrated answer text.
	Answer string `json:"answer"`

	// Query is the generated query that produced the result.
	Query string `json:"query"`

	// Confidence is the generator's self-assessed confidence in Query,
	// between 0 and 1.
	Confidence float64 `json:"confidence"`

	// Degraded carries the underlying failure when execution or narration
	// failed and Answer holds a classified explanation instead.
	Degraded string `json:"degraded,omitempty"`

	// Timings records how long each pipeline stage took.
	Timings engine.Timings `json:"timings"`
}

// runQueryArgs is the input for the "run_query" tool.
type runQueryArgs struct {
	// Query is the Cypher query to execute.
	Query string `json:"query" jsonschema:"Cypher query to execute"`

	// Params holds values for $name placeholders in Query.
	Params map[string]any `json:"params,omitempty" jsonschema:"values for $name parameter placeholders in the query"`

	// Limit caps the number of returned rows. Zero uses the configured
	// default.
	Limit int `json:"limit,omitempty" jsonschema:"row cap for the result; 0 uses the server default"`
}

// runQueryResult is the output of the "run_query" tool.
type runQueryResult struct {
	// Success reports whether the query ran without errors.
	Success bool `json:"success"`

	// Data is the shaped result set.
	Data any `json:"data"`

	// Stats describes the execution when the backend reported statistics.
	Stats *execute.Stats `json:"stats,omitempty"`

	// Errors lists failures the execution surfaced without aborting.
	Errors []string `json:"errors,omitempty"`
}

// getSchemaArgs is the (empty) input for the "get_schema" tool.
type getSchemaArgs struct{}

// getSchemaResult is the output of the "get_schema" tool.
type getSchemaResult struct {
	// Labels are the node labels present in the graph.
	Labels []string `json:"labels"`

	// Relationships are the relationship types present in the graph.
	Relationships []string `json:"relationships"`

	// Properties are the property names observed across all labels.
	Properties []string `json:"properties"`
}

// ingestEntityArgs is the input for the "ingest_entity" tool.
type ingestEntityArgs struct {
	// Label is the entity label (node kind) to write under.
	Label string `json:"label" jsonschema:"entity label (node kind) to write under"`

	// Attributes is the entity's attribute map. It must contain the
	// identifier attribute configured for the label.
	Attributes map[string]any `json:"attributes" jsonschema:"attribute map for the entity, including its identifier attribute"`
}

// ingestEntityResult is the output of the "ingest_entity" tool.
type ingestEntityResult struct {
	// Label and ID identify the written entity.
	Label string `json:"label"`
	ID    string `json:"id"`

	// GraphStored and VectorStored report which stores accepted the write.
	GraphStored  bool `json:"graph_stored"`
	VectorStored bool `json:"vector_stored"`

	// Edges counts the relationships materialized alongside the node.
	Edges int `json:"edges"`

	// Warnings records degradations that did not abort the write.
	Warnings []string `json:"warnings,omitempty"`

	// DurationMS is the wall-clock time the write took, in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// handleAsk implements the "ask" tool.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, args askArgs) (*mcp.CallToolResult, *askResult, error) {
	if args.Question == "" {
		return nil, nil, fmt.Errorf("mcp server: question must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	ans, err := s.engine.Answer(ctx, args.Question)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp server: ask failed: %w", err)
	}

	res := &askResult{
		Answer:   ans.Answer,
		Degraded: ans.Error,
		Timings:  ans.Timings,
	}
	if ans.Query != nil {
		res.Query = ans.Query.Query
		res.Confidence = ans.Query.Confidence
	}
	return textResult(res), res, nil
}

// handleRunQuery implements the "run_query" tool.
func (s *Server) handleRunQuery(ctx context.Context, _ *mcp.CallToolRequest, args runQueryArgs) (*mcp.CallToolResult, *runQueryResult, error) {
	if args.Query == "" {
		return nil, nil, fmt.Errorf("mcp server: query must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	var opts []execute.Option
	if args.Limit > 0 {
		opts = append(opts, execute.WithLimit(args.Limit))
	}

	result, err := s.engine.Execute(ctx, args.Query, args.Params, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp server: query execution failed: %w", err)
	}

	res := &runQueryResult{
		Success: result.Success,
		Data:    result.Data,
		Stats:   result.Stats,
		Errors:  result.Errors,
	}
	return textResult(res), res, nil
}

// handleGetSchema implements the "get_schema" tool.
func (s *Server) handleGetSchema(ctx context.Context, _ *mcp.CallToolRequest, _ getSchemaArgs) (*mcp.CallToolResult, *getSchemaResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	summary, err := s.engine.Schema(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp server: schema lookup failed: %w", err)
	}

	// Empty slices, not nil: the declared schema promises arrays.
	res := &getSchemaResult{
		Labels:        summary.Labels,
		Relationships: summary.Relationships,
		Properties:    summary.Properties,
	}
	if res.Labels == nil {
		res.Labels = []string{}
	}
	if res.Relationships == nil {
		res.Relationships = []string{}
	}
	if res.Properties == nil {
		res.Properties = []string{}
	}
	return textResult(res), res, nil
}

// handleIngestEntity implements the "ingest_entity" tool.
func (s *Server) handleIngestEntity(ctx context.Context, _ *mcp.CallToolRequest, args ingestEntityArgs) (*mcp.CallToolResult, *ingestEntityResult, error) {
	if args.Label == "" {
		return nil, nil, fmt.Errorf("mcp server: label must not be empty")
	}
	if len(args.Attributes) == 0 {
		return nil, nil, fmt.Errorf("mcp server: attributes must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	report, err := s.engine.Ingest(ctx, args.Label, ingest.Entity(args.Attributes))
	if err != nil {
		return nil, nil, fmt.Errorf("mcp server: ingest failed: %w", err)
	}

	res := &ingestEntityResult{
		Label:        report.Label,
		ID:           report.ID,
		GraphStored:  report.GraphStored,
		VectorStored: report.VectorStored,
		Edges:        report.Edges,
		Warnings:     report.Warnings,
		DurationMS:   report.Duration.Milliseconds(),
	}
	return textResult(res), res, nil
}

// textResult wraps v's JSON encoding as a single text content block, for
// clients that surface text rather than structured content.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		// The result types marshal unconditionally; this path only fires
		// when a store hands back an unmarshalable Data value.
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("encoding failed: %v", err)}},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
