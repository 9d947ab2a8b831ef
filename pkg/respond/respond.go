// Package respond narrates execution results back into reader-facing
// answers.
//
// The answer text is the only part produced by a model call. Insights are
// derived deterministically from the result table, and visualization
// suggestions come from a fixed rule catalog, so both stay stable and
// testable regardless of the model. Empty results get their own prompt
// with a deterministic fallback sentence, and upstream failures are
// classified into friendly messages without any model call at all.
package respond

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/provider/llm"
)

// Format selects the markup of the narrated answer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// IsValid reports whether f is a recognised answer format.
func (f Format) IsValid() bool {
	switch f {
	case FormatText, FormatMarkdown, FormatJSON:
		return true
	}
	return false
}

// Style selects the register of the narrated answer.
type Style string

const (
	StyleConcise   Style = "concise"
	StyleDetailed  Style = "detailed"
	StyleTechnical Style = "technical"
)

// IsValid reports whether s is a recognised answer style.
func (s Style) IsValid() bool {
	switch s {
	case StyleConcise, StyleDetailed, StyleTechnical:
		return true
	}
	return false
}

// Visualization types, in rank order.
const (
	VizNumber    = "number"
	VizBarChart  = "bar_chart"
	VizLineChart = "line_chart"
	VizGraph     = "graph"
	VizTable     = "table"
)

// DefaultSampleRows is how many result rows are quoted to the model.
const DefaultSampleRows = 10

const narrationTemperature = 0.3

// emptyFallback is the deterministic answer used when the model cannot
// narrate an empty result.
const emptyFallback = "No results were found for this question. Try rephrasing it or broadening its constraints."

// Visualization is one ranked rendering suggestion for a result.
type Visualization struct {
	Type      string   `json:"type"`
	Rationale string   `json:"rationale"`
	Columns   []string `json:"columns,omitempty"`
}

// Bundle is the reader-facing outcome of one answered question.
type Bundle struct {
	Answer         string          `json:"answer"`
	Insights       []string        `json:"insights,omitempty"`
	Visualizations []Visualization `json:"visualizations,omitempty"`
}

type settings struct {
	format         Format
	style          Style
	sampleRows     int
	includeDetails bool
}

// Option adjusts narration behaviour, either at construction for all
// calls or per call.
type Option func(*settings)

// WithFormat selects the answer markup. Unknown formats are rejected when
// generation runs.
func WithFormat(f Format) Option {
	return func(s *settings) { s.format = f }
}

// WithStyle selects the answer register.
func WithStyle(st Style) Option {
	return func(s *settings) { s.style = st }
}

// WithSampleRows bounds how many rows are quoted to the model. Values
// below one are ignored.
func WithSampleRows(n int) Option {
	return func(s *settings) {
		if n >= 1 {
			s.sampleRows = n
		}
	}
}

// WithDetails includes the technical error text in failure answers. Off
// by default.
func WithDetails(include bool) Option {
	return func(s *settings) { s.includeDetails = include }
}

// Generator narrates results through an LLM provider.
type Generator struct {
	llm      llm.Provider
	defaults settings
}

// New builds a Generator. Options set the defaults for every call.
func New(p llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm: p,
		defaults: settings{
			format:     FormatText,
			style:      StyleConcise,
			sampleRows: DefaultSampleRows,
		},
	}
	for _, opt := range opts {
		opt(&g.defaults)
	}
	return g
}

func (g *Generator) resolve(opts []Option) settings {
	cfg := g.defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Generate turns a question, its execution result and the query text into
// an answer bundle. The answer is model-written; insights and
// visualization suggestions are deterministic.
func (g *Generator) Generate(ctx context.Context, question string, result *execute.ExecutionResult, queryText string, opts ...Option) (*Bundle, error) {
	const op = "generate_response"
	cfg := g.resolve(opts)
	if strings.TrimSpace(question) == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "blank question")
	}
	if result == nil {
		return nil, errs.New(errs.KindInvalidInput, op, "nil execution result")
	}
	if !cfg.format.IsValid() {
		return nil, errs.Newf(errs.KindInvalidInput, op, "unknown response format %q", cfg.format)
	}
	if !cfg.style.IsValid() {
		return nil, errs.Newf(errs.KindInvalidInput, op, "unknown response style %q", cfg.style)
	}

	rows, _ := result.Data.([]map[string]any)
	returned := len(rows)
	if result.Stats != nil {
		returned = result.Stats.RowsReturned
	}
	if returned == 0 {
		return &Bundle{
			Answer:   g.emptyAnswer(ctx, question, queryText, cfg),
			Insights: insights(nil, 0),
		}, nil
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Messages:     []llm.Message{llm.User(resultPrompt(question, queryText, rows, result, cfg))},
		Temperature:  narrationTemperature,
		SystemPrompt: systemPrompt(cfg),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindResponseGeneration, op, err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return nil, errs.New(errs.KindResponseGeneration, op, "model returned an empty answer")
	}

	return &Bundle{
		Answer:         answer,
		Insights:       insights(rows, returned),
		Visualizations: suggest(queryText, rows, result),
	}, nil
}

// FromError turns an upstream failure into a reader-facing bundle. The
// classification is deterministic; no model call is made.
func (g *Generator) FromError(upstream error, opts ...Option) *Bundle {
	cfg := g.resolve(opts)
	answer := classify(upstream)
	if cfg.includeDetails && upstream != nil {
		answer += "\n\nDetails: " + upstream.Error()
	}
	return &Bundle{Answer: answer}
}

func classify(err error) string {
	var lower string
	if err != nil {
		lower = strings.ToLower(err.Error())
	}
	switch {
	case errs.IsKind(err, errs.KindQueryTimeout) || strings.Contains(lower, "timeout"):
		return "The query took too long to run. Try a narrower question, for example a shorter time range or fewer entities."
	case errs.IsKind(err, errs.KindQueryValidation) || errs.IsKind(err, errs.KindUnsafeQuery) || strings.Contains(lower, "syntax"):
		return "There was an issue with the generated query. Try rephrasing the question in simpler terms."
	default:
		return "An internal issue occurred while answering this question. Try again, or rephrase the question."
	}
}

// emptyAnswer asks the model to explain an empty result, falling back to
// a fixed sentence when that fails.
func (g *Generator) emptyAnswer(ctx context.Context, question, queryText string, cfg settings) string {
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Messages:     []llm.Message{llm.User(emptyPrompt(question, queryText))},
		Temperature:  narrationTemperature,
		SystemPrompt: systemPrompt(cfg),
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		slog.WarnContext(ctx, "empty-result narration unavailable", "error", err)
		return emptyFallback
	}
	return strings.TrimSpace(resp.Content)
}

func systemPrompt(cfg settings) string {
	var b strings.Builder
	b.WriteString("You narrate graph query results for a non-technical reader.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Answer in one to three short paragraphs.\n")
	b.WriteString("- Base every statement on the provided rows and statistics. Never invent values.\n")
	switch cfg.style {
	case StyleDetailed:
		b.WriteString("- Explain the result and its context thoroughly.\n")
	case StyleTechnical:
		b.WriteString("- Keep exact counts and field names in the answer.\n")
	default:
		b.WriteString("- Be brief and direct.\n")
	}
	switch cfg.format {
	case FormatMarkdown:
		b.WriteString("- Reply in Markdown.\n")
	case FormatJSON:
		b.WriteString("- Reply with a single JSON object of the form {\"answer\": \"...\"}.\n")
	default:
		b.WriteString("- Reply in plain text without any markup.\n")
	}
	return b.String()
}

func resultPrompt(question, queryText string, rows []map[string]any, result *execute.ExecutionResult, cfg settings) string {
	var b strings.Builder
	b.WriteString("## Question\n\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\n## Query\n\n")
	b.WriteString(strings.TrimSpace(queryText))
	b.WriteString("\n\n")
	writeSample(&b, rows, result, cfg.sampleRows)
	writeStats(&b, result.Stats)
	return strings.TrimSpace(b.String())
}

// writeSample quotes at most sample rows as JSON lines, naming how many
// were left out. Non-tabular data is quoted whole.
func writeSample(b *strings.Builder, rows []map[string]any, result *execute.ExecutionResult, sample int) {
	if rows == nil {
		b.WriteString("## Results\n\n")
		if data, err := json.Marshal(result.Data); err == nil {
			b.Write(data)
		}
		b.WriteString("\n\n")
		return
	}
	shown := rows
	if len(shown) > sample {
		shown = shown[:sample]
		fmt.Fprintf(b, "## Results (first %d of %d rows)\n\n", sample, len(rows))
	} else {
		fmt.Fprintf(b, "## Results (%d rows)\n\n", len(rows))
	}
	for _, row := range shown {
		if data, err := json.Marshal(row); err == nil {
			b.Write(data)
			b.WriteByte('\n')
		}
	}
	if extra := len(rows) - len(shown); extra > 0 {
		fmt.Fprintf(b, "... and %d more rows\n", extra)
	}
	b.WriteString("\n")
}

func writeStats(b *strings.Builder, stats *execute.Stats) {
	if stats == nil {
		return
	}
	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(b, "execution_ms: %d\n", stats.ExecutionMS)
	fmt.Fprintf(b, "rows_returned: %d\n", stats.RowsReturned)
	if stats.RowsScanned > 0 {
		fmt.Fprintf(b, "rows_scanned: %d\n", stats.RowsScanned)
	}
	if stats.DatabaseHits > 0 {
		fmt.Fprintf(b, "database_hits: %d\n", stats.DatabaseHits)
	}
}

func emptyPrompt(question, queryText string) string {
	var b strings.Builder
	b.WriteString("## Question\n\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\n## Query\n\n")
	b.WriteString(strings.TrimSpace(queryText))
	b.WriteString("\n\nThe query returned no rows. Explain briefly why there may be no results and suggest how the question could be rephrased or broadened.")
	return b.String()
}
