package engine

import (
	"context"
	"strings"
	"time"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/querygen"
	"github.com/MrWong99/graphseer/pkg/respond"
	"github.com/MrWong99/graphseer/pkg/retrieve"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Timings records how long each pipeline stage took, in milliseconds.
type Timings struct {
	RetrieveMS int64 `json:"retrieve_ms"`
	GenerateMS int64 `json:"generate_ms"`
	ExecuteMS  int64 `json:"execute_ms"`
	RespondMS  int64 `json:"respond_ms"`
	TotalMS    int64 `json:"total_ms"`
}

// Answer is the full output of one question pipeline: the narrated answer
// plus every intermediate artifact, so hosts can render as much or as
// little as they want.
//
// A non-empty Error means the pipeline degraded after a query was
// generated: execution or narration failed, and Response carries a
// classified explanation instead of a narration. The question still got an
// answer; Error preserves what went wrong underneath.
type Answer struct {
	Question string                   `json:"question"`
	Answer   string                   `json:"answer"`
	Context  *retrieve.Bundle         `json:"context,omitempty"`
	Query    *querygen.Artifact       `json:"query,omitempty"`
	Result   *execute.ExecutionResult `json:"result,omitempty"`
	Response *respond.Bundle          `json:"response,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Timings  Timings                  `json:"timings"`
}

type answerSettings struct {
	retrieve []retrieve.Option
	generate []querygen.Option
	execute  []execute.Option
	respond  []respond.Option
}

// AnswerOption tunes one run of the question pipeline.
type AnswerOption func(*answerSettings)

// WithRetrieval forwards options to the retrieval stage.
func WithRetrieval(opts ...retrieve.Option) AnswerOption {
	return func(s *answerSettings) { s.retrieve = append(s.retrieve, opts...) }
}

// WithGeneration forwards options to the query-generation stage.
func WithGeneration(opts ...querygen.Option) AnswerOption {
	return func(s *answerSettings) { s.generate = append(s.generate, opts...) }
}

// WithExecution forwards options to the execution stage.
func WithExecution(opts ...execute.Option) AnswerOption {
	return func(s *answerSettings) { s.execute = append(s.execute, opts...) }
}

// WithResponse forwards options to the narration stage.
func WithResponse(opts ...respond.Option) AnswerOption {
	return func(s *answerSettings) { s.respond = append(s.respond, opts...) }
}

// Answer runs the whole read path for question: retrieve context, generate
// a query, execute it, narrate the result.
//
// Failures before a query exists (invalid input, generation exhausted) are
// returned as errors. Failures after (execution, narration) degrade: the
// returned Answer carries a classified explanation in Response and the
// underlying failure in Error, and the error return is nil. Partial
// retrieval context never fails the pipeline.
func (e *Engine) Answer(ctx context.Context, question string, opts ...AnswerOption) (ans *Answer, err error) {
	start := time.Now()
	e.metrics.InflightAnswers.Add(ctx, 1)
	defer e.metrics.InflightAnswers.Add(ctx, -1)
	defer func() {
		observe.ObserveSince(ctx, e.metrics.AnswerDuration, start, observe.Attr("status", status(err)))
		if ans != nil {
			ans.Timings.TotalMS = time.Since(start).Milliseconds()
		}
	}()

	var cfg answerSettings
	for _, opt := range opts {
		opt(&cfg)
	}
	var t Timings

	st := time.Now()
	bundle, err := e.RetrieveContext(ctx, question, cfg.retrieve...)
	t.RetrieveMS = time.Since(st).Milliseconds()
	if err != nil {
		return nil, err
	}
	if len(bundle.Errors) > 0 {
		observe.Logger(ctx).Warn("answering with partial context",
			"question", observe.Redact(question),
			"issues", strings.Join(bundle.Errors, "; "))
	}

	st = time.Now()
	art, err := e.GenerateQuery(ctx, question, bundle, cfg.generate...)
	t.GenerateMS = time.Since(st).Milliseconds()
	if err != nil {
		return nil, err
	}

	ans = &Answer{Question: question, Context: bundle, Query: art, Timings: t}

	st = time.Now()
	result, execErr := e.Execute(ctx, art.Query, nil, cfg.execute...)
	ans.Timings.ExecuteMS = time.Since(st).Milliseconds()
	if execErr != nil {
		observe.Logger(ctx).Warn("generated query failed to execute",
			"question", observe.Redact(question),
			"error", execErr)
		ans.Error = execErr.Error()
		ans.Response = e.responder.FromError(execErr, cfg.respond...)
		ans.Answer = ans.Response.Answer
		return ans, nil
	}
	ans.Result = result

	st = time.Now()
	resp, respErr := e.GenerateResponse(ctx, question, result, art.Query, cfg.respond...)
	ans.Timings.RespondMS = time.Since(st).Milliseconds()
	if respErr != nil {
		observe.Logger(ctx).Warn("result narration failed",
			"question", observe.Redact(question),
			"error", respErr)
		ans.Error = respErr.Error()
		ans.Response = e.responder.FromError(respErr, cfg.respond...)
		ans.Answer = ans.Response.Answer
		return ans, nil
	}
	ans.Response = resp
	ans.Answer = resp.Answer

	e.rememberAnswer(ctx, bundle, art)
	return ans, nil
}

// rememberAnswer upserts the answered question/query pair into the
// similar-query collection, reusing the embedding computed during
// retrieval. Best effort: failures are logged, never surfaced, and a
// missing embedding (the embedder failed during retrieval) skips the
// writeback entirely.
func (e *Engine) rememberAnswer(ctx context.Context, bundle *retrieve.Bundle, art *querygen.Artifact) {
	if !e.remember || len(bundle.Embedding) == 0 || art.Query == "" {
		return
	}
	point := vector.Point{
		ID:     vector.PointID("question", bundle.Question),
		Vector: bundle.Embedding,
		Payload: map[string]any{
			retrieve.PayloadQuestion: observe.Redact(bundle.Question),
			retrieve.PayloadQuery:    observe.Redact(art.Query),
			"remembered_at":          time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := e.vectors.Upsert(ctx, e.memoryColl, []vector.Point{point}); err != nil {
		observe.Logger(ctx).Warn("similar-query writeback failed",
			"collection", e.memoryColl, "error", err)
		return
	}
	observe.Logger(ctx).Debug("remembered answered question",
		"collection", e.memoryColl)
}
