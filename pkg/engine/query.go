package engine

import (
	"context"
	"time"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/querygen"
	"github.com/MrWong99/graphseer/pkg/respond"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

// GenerateQuery produces a validated query artifact for question. A nil
// bundle makes the engine assemble the retrieval context itself; callers
// that already hold one pass it to avoid the second retrieval.
func (e *Engine) GenerateQuery(ctx context.Context, question string, bundle *retrieve.Bundle, opts ...querygen.Option) (*querygen.Artifact, error) {
	start := time.Now()
	if bundle == nil {
		var err error
		bundle, err = e.RetrieveContext(ctx, question)
		if err != nil {
			return nil, err
		}
	}
	art, err := e.generator.Generate(ctx, question, bundle, opts...)

	source := "llm"
	if art != nil && art.Metadata.TemplateUsed != "" {
		source = "template"
	}
	observe.ObserveSince(ctx, e.metrics.GenerateDuration, start, observe.Attr("status", status(err)))
	e.metrics.RecordQueryGenerated(ctx, source, status(err))
	return art, err
}

// ValidateQuery checks query against the safety and complexity rules
// without executing it. The current graph schema is fetched for membership
// checks when available; validation proceeds without it otherwise.
func (e *Engine) ValidateQuery(ctx context.Context, query string, opts ...querygen.Option) querygen.Report {
	schema, err := e.retriever.Schema(ctx)
	if err != nil {
		observe.Logger(ctx).Debug("validating without schema", "error", err)
		schema = nil
	}
	rep := e.generator.Validate(query, schema, opts...)
	if !rep.Valid {
		reason := "validation"
		if errs.IsKind(rep.Err("validate_query"), errs.KindUnsafeQuery) {
			reason = "unsafe"
		}
		e.metrics.RecordQueryRejected(ctx, reason)
	}
	return rep
}

// SanitizeQuery normalizes query for execution: whitespace and trailing
// semicolons trimmed, a row cap injected when none is present.
func (e *Engine) SanitizeQuery(query string, opts ...querygen.Option) string {
	return e.generator.Sanitize(query, opts...)
}

// Execute runs query against the graph store under the engine's execution
// guards.
func (e *Engine) Execute(ctx context.Context, query string, params map[string]any, opts ...execute.Option) (*execute.ExecutionResult, error) {
	start := time.Now()
	res, err := e.executor.Execute(ctx, query, params, opts...)
	observe.ObserveSince(ctx, e.metrics.ExecuteDuration, start, observe.Attr("op", "execute_query"), observe.Attr("status", status(err)))
	return res, err
}

// ExecuteCount rewrites query's final projection into a count and returns
// the single resulting number.
func (e *Engine) ExecuteCount(ctx context.Context, query string, params map[string]any, opts ...execute.Option) (int64, error) {
	start := time.Now()
	n, err := e.executor.ExecuteCount(ctx, query, params, opts...)
	observe.ObserveSince(ctx, e.metrics.ExecuteDuration, start, observe.Attr("op", "execute_count"), observe.Attr("status", status(err)))
	return n, err
}

// ExecutePaginated runs query windowed to the requested page and reports
// the total row count alongside.
func (e *Engine) ExecutePaginated(ctx context.Context, query string, page, perPage int, params map[string]any, opts ...execute.Option) (*execute.PaginatedResult, error) {
	start := time.Now()
	res, err := e.executor.ExecutePaginated(ctx, query, page, perPage, params, opts...)
	observe.ObserveSince(ctx, e.metrics.ExecuteDuration, start, observe.Attr("op", "execute_paginated"), observe.Attr("status", status(err)))
	return res, err
}

// ExplainQuery returns the store's execution plan for query without running
// it.
func (e *Engine) ExplainQuery(ctx context.Context, query string, params map[string]any) (*graph.PlanNode, error) {
	return e.executor.Explain(ctx, query, params)
}

// TestQuery reports whether the store can plan query.
func (e *Engine) TestQuery(ctx context.Context, query string) bool {
	return e.executor.Test(ctx, query)
}

// GenerateResponse narrates an execution result into a reader-facing answer
// with deterministic insights and visualization suggestions.
func (e *Engine) GenerateResponse(ctx context.Context, question string, result *execute.ExecutionResult, queryText string, opts ...respond.Option) (*respond.Bundle, error) {
	start := time.Now()
	resp, err := e.responder.Generate(ctx, question, result, queryText, opts...)
	observe.ObserveSince(ctx, e.metrics.RespondDuration, start, observe.Attr("status", status(err)))
	return resp, err
}
