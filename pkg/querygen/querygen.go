// Package querygen turns questions and retrieval context into validated
// graph queries.
//
// Cheap regex templates answer the common question shapes without an LLM
// call. Everything else goes through prompt assembly, an LLM completion
// and validation, with bounded retries that feed the validator's findings
// back to the model. Queries are read-only unless writes are explicitly
// allowed, and every artifact carries a confidence score derived from how
// the query was produced.
package querygen

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/provider/llm"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

const (
	// DefaultMaxRetries bounds how often a rejected completion is retried.
	DefaultMaxRetries = 3

	// DefaultTemperature keeps generation near-deterministic.
	DefaultTemperature = 0.1

	// DefaultMaxComplexity is the complexity score above which a query is
	// rejected instead of executed.
	DefaultMaxComplexity = 100

	// DefaultRowLimit is the row cap appended to queries without one.
	DefaultRowLimit = 100
)

// Confidence scoring.
const (
	templateConfidence = 0.9
	llmConfidence      = 0.7
	retryPenalty       = 0.1
	warningPenalty     = 0.05
	minConfidence      = 0.1
)

type settings struct {
	allowWrite    bool
	maxRetries    int
	temperature   float64
	explain       bool
	maxComplexity int
	rowLimit      int
}

// Option adjusts generation behaviour, either at construction for all
// calls or per call.
type Option func(*settings)

// WithAllowWrite permits write keywords in generated and validated
// queries. Off by default.
func WithAllowWrite(allow bool) Option {
	return func(s *settings) { s.allowWrite = allow }
}

// WithMaxRetries bounds the validation-feedback retry loop. Values below
// zero are ignored.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithTemperature sets the sampling temperature for query completions.
func WithTemperature(t float64) Option {
	return func(s *settings) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// WithExplanation toggles the prose explanation pass. On by default.
func WithExplanation(explain bool) Option {
	return func(s *settings) { s.explain = explain }
}

// WithMaxComplexity overrides the complexity rejection threshold.
func WithMaxComplexity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxComplexity = n
		}
	}
}

// WithRowLimit overrides the row cap used by sanitization and templates.
func WithRowLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.rowLimit = n
		}
	}
}

// Artifact is one generated query with everything a caller needs to
// decide whether to run it.
type Artifact struct {
	Query       string   `json:"query_text"`
	Explanation string   `json:"explanation,omitempty"`
	Confidence  float64  `json:"confidence"`
	Warnings    []string `json:"warnings,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata records how the artifact came to be.
type Metadata struct {
	TemplateUsed string `json:"template_used,omitempty"`
	RetryCount   int    `json:"retry_count"`
	GenerationMS int64  `json:"generation_ms"`
}

// Generator builds validated queries from questions and retrieval
// bundles.
type Generator struct {
	llm      llm.Provider
	defaults settings
}

// New builds a Generator around the given completion provider. Options
// set the defaults for every call.
func New(p llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm: p,
		defaults: settings{
			maxRetries:    DefaultMaxRetries,
			temperature:   DefaultTemperature,
			explain:       true,
			maxComplexity: DefaultMaxComplexity,
			rowLimit:      DefaultRowLimit,
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

// Generate produces a validated query for question using the retrieval
// context in bundle. Template hits skip the LLM entirely; otherwise the
// model is prompted and retried with validator feedback until a query
// passes or the retry budget runs out.
func (g *Generator) Generate(ctx context.Context, question string, bundle *retrieve.Bundle, opts ...Option) (*Artifact, error) {
	const op = "generate_query"
	if strings.TrimSpace(question) == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "blank question")
	}
	if bundle == nil {
		return nil, errs.New(errs.KindInvalidInput, op, "nil context bundle")
	}
	cfg := g.resolve(opts)
	start := time.Now()

	if name, query, ok := matchTemplate(question, bundle, cfg.rowLimit); ok {
		rep := validate(query, &bundle.Schema, cfg)
		if rep.Valid {
			art := &Artifact{
				Query:    sanitize(query, cfg),
				Warnings: rep.Warnings,
				Metadata: Metadata{TemplateUsed: name},
			}
			g.explainArtifact(ctx, art, cfg)
			art.Confidence = confidence(templateConfidence, 0, len(art.Warnings))
			art.Metadata.GenerationMS = time.Since(start).Milliseconds()
			return art, nil
		}
		slog.DebugContext(ctx, "template query failed validation, falling back to llm",
			"template", name,
			"errors", strings.Join(rep.Errors, "; "))
	}

	system, user := buildPrompt(ctx, g.llm, question, bundle, cfg)
	messages := []llm.Message{llm.User(user)}

	var lastReport Report
	for attempt := 0; ; attempt++ {
		resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
			Messages:     messages,
			Temperature:  cfg.temperature,
			SystemPrompt: system,
		})
		if err != nil {
			if attempt >= cfg.maxRetries {
				return nil, errs.Wrapf(errs.KindQueryGeneration, op, err, "completion failed after %d attempts", attempt+1)
			}
			messages = append(messages, llm.User("The previous attempt failed. Reply with the query only."))
			continue
		}
		var content string
		if resp != nil {
			content = resp.Content
		}
		query := extractQuery(content)
		rep := validate(query, &bundle.Schema, cfg)
		if rep.Valid {
			art := &Artifact{
				Query:    sanitize(query, cfg),
				Warnings: rep.Warnings,
				Metadata: Metadata{RetryCount: attempt},
			}
			g.explainArtifact(ctx, art, cfg)
			art.Confidence = confidence(llmConfidence, attempt, len(art.Warnings))
			art.Metadata.GenerationMS = time.Since(start).Milliseconds()
			return art, nil
		}
		lastReport = rep
		if attempt >= cfg.maxRetries {
			break
		}
		slog.DebugContext(ctx, "generated query rejected, retrying",
			"attempt", attempt+1,
			"errors", strings.Join(rep.Errors, "; "))
		messages = append(messages,
			llm.Assistant(content),
			llm.User(retryFeedback(rep)))
	}
	return nil, errs.Newf(errs.KindQueryGeneration, op,
		"no valid query after %d attempts: %s", cfg.maxRetries+1, strings.Join(lastReport.Errors, "; "))
}

func retryFeedback(rep Report) string {
	var sb strings.Builder
	sb.WriteString("That query was rejected:\n")
	for _, e := range rep.Errors {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	sb.WriteString("Reply with a corrected query and nothing else.")
	return sb.String()
}

// explainArtifact asks the model for a one-paragraph explanation of the
// query. A failed explanation degrades to a warning, never an error.
func (g *Generator) explainArtifact(ctx context.Context, art *Artifact, cfg settings) {
	if !cfg.explain {
		return
	}
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{llm.User(fmt.Sprintf(
			"Explain in one short paragraph, for a non-technical reader, what this graph query returns:\n\n%s", art.Query))},
		Temperature: 0.3,
	})
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		slog.WarnContext(ctx, "query explanation unavailable", "error", err)
		art.Warnings = append(art.Warnings, "explanation unavailable")
		return
	}
	art.Explanation = strings.TrimSpace(resp.Content)
}

func confidence(base float64, retries, warnings int) float64 {
	c := base - retryPenalty*float64(retries) - warningPenalty*float64(warnings)
	if c < minConfidence {
		return minConfidence
	}
	return c
}

var (
	fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.+?)```")
	queryVerb   = regexp.MustCompile(`(?i)^\s*(?:optional\s+)?(?:match|call|unwind)\b`)
	inlineVerb  = regexp.MustCompile(`(?i)\b(?:optional\s+)?match\b|\bunwind\b|\bcall\b`)
)

// extractQuery pulls the query out of a completion: fenced code blocks
// win, then the first block of lines starting with a query verb, then a
// query embedded mid-line. Surrounding commentary is dropped.
func extractQuery(content string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if queryVerb.MatchString(line) {
			start = i
			break
		}
	}
	if start < 0 {
		if loc := inlineVerb.FindStringIndex(text); loc != nil {
			return strings.TrimSpace(text[loc[0]:])
		}
		return ""
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}
