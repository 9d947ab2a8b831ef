package querygen_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/provider/llm"
	llmmock "github.com/MrWong99/graphseer/pkg/provider/llm/mock"
	"github.com/MrWong99/graphseer/pkg/querygen"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

func contextBundle() *retrieve.Bundle {
	return &retrieve.Bundle{
		Question: "placeholder",
		Similar: []retrieve.SimilarRecord{
			{
				Question: "How many customers do we have?",
				Query:    "MATCH (n:Customer) RETURN count(n) AS count",
				Score:    0.9,
			},
		},
		Schema: retrieve.SchemaSummary{
			Labels:        []string{"Customer", "WorkOrder"},
			Relationships: []string{"PLACED_BY"},
			Properties:    []string{"due_at", "id", "name", "status"},
		},
		Examples: map[string][]map[string]any{
			"Customer": {{"id": "c1", "name": "Acme", "status": "active"}},
		},
		Metadata: retrieve.Metadata{
			Detected: []string{"Customer"},
			Entities: map[string]retrieve.EntityMeta{
				"Customer": {
					Label:       "Customer",
					Description: "A paying customer of the platform.",
					Aliases:     []string{"client"},
				},
			},
		},
	}
}

func scopedBundle() *retrieve.Bundle {
	b := contextBundle()
	b.Metadata.Scopes = map[string]retrieve.DetectedScope{
		"churned": {
			Entity: "Customer",
			Spec: entity.ScopeSpec{
				Variant:  entity.VariantPropertyFilter,
				Property: "status",
				Operator: entity.OpEquals,
				Value:    "churned",
				Distinct: true,
			},
			Concept: "Customers whose subscription has lapsed.",
			Rules:   []string{"Exclude trial accounts."},
		},
	}
	return b
}

func completion(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: text}
}

func TestGenerate_TemplateShortCircuitsLLM(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: completion("Lists every customer in the graph.")}
	g := querygen.New(p)

	art, err := g.Generate(context.Background(), "List all customers", contextBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if want := "MATCH (n:Customer) RETURN n LIMIT 100"; art.Query != want {
		t.Errorf("query = %q, want %q", art.Query, want)
	}
	if art.Metadata.TemplateUsed != "list_all" {
		t.Errorf("template used = %q, want list_all", art.Metadata.TemplateUsed)
	}
	if art.Metadata.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", art.Metadata.RetryCount)
	}
	if art.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", art.Confidence)
	}
	if art.Explanation != "Lists every customer in the graph." {
		t.Errorf("explanation = %q", art.Explanation)
	}
	if len(art.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", art.Warnings)
	}
	// The only completion is the explanation pass.
	if len(p.CompleteCalls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(p.CompleteCalls))
	}
	if !strings.Contains(p.CompleteCalls[0].Req.Messages[0].Content, "Explain in one short paragraph") {
		t.Errorf("unexpected explanation prompt: %q", p.CompleteCalls[0].Req.Messages[0].Content)
	}
}

func TestGenerate_LLMPathExtractsFencedQuery(t *testing.T) {
	t.Parallel()
	raw := "MATCH (w:WorkOrder)-[:PLACED_BY]->(c:Customer) WHERE w.due_at < datetime() RETURN c LIMIT 20"
	p := &llmmock.Provider{CompleteResponses: []*llm.CompletionResponse{
		completion("```cypher\n" + raw + "\n```"),
		completion("Finds customers whose work orders are overdue."),
	}}
	g := querygen.New(p)

	art, err := g.Generate(context.Background(), "Which customers have overdue work orders?", contextBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if art.Query != raw {
		t.Errorf("query = %q, want %q", art.Query, raw)
	}
	if art.Metadata.TemplateUsed != "" {
		t.Errorf("template used = %q, want none", art.Metadata.TemplateUsed)
	}
	if art.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", art.Confidence)
	}
	if art.Explanation == "" {
		t.Error("expected explanation to be set")
	}
	if len(p.CompleteCalls) != 2 {
		t.Fatalf("Complete calls = %d, want 2", len(p.CompleteCalls))
	}

	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.SystemPrompt, "read-only") {
		t.Errorf("system prompt missing read-only rule: %q", req.SystemPrompt)
	}
	if req.Temperature != querygen.DefaultTemperature {
		t.Errorf("temperature = %v, want %v", req.Temperature, querygen.DefaultTemperature)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"## Graph schema",
		"## Entities",
		"## Similar past queries",
		"## Example rows",
		"Which customers have overdue work orders?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "## Detected scopes") {
		t.Error("plain prompt must not carry a scope section")
	}
}

func TestGenerate_RetriesWithValidatorFeedback(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponses: []*llm.CompletionResponse{
		completion("MATCH (n:Customer) DELETE n"),
		completion("MATCH (n:Customer) RETURN n LIMIT 5"),
		completion("Lists five customers."),
	}}
	g := querygen.New(p)

	art, err := g.Generate(context.Background(), "Which customers should we call today?", contextBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if want := "MATCH (n:Customer) RETURN n LIMIT 5"; art.Query != want {
		t.Errorf("query = %q, want %q", art.Query, want)
	}
	if art.Metadata.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", art.Metadata.RetryCount)
	}
	if want := 0.7 - 0.1; art.Confidence != want {
		t.Errorf("confidence = %v, want %v", art.Confidence, want)
	}
	if len(p.CompleteCalls) != 3 {
		t.Fatalf("Complete calls = %d, want 3", len(p.CompleteCalls))
	}

	retry := p.CompleteCalls[1].Req
	if len(retry.Messages) != 3 {
		t.Fatalf("retry messages = %d, want 3", len(retry.Messages))
	}
	if retry.Messages[1].Role != llm.RoleAssistant || retry.Messages[1].Content != "MATCH (n:Customer) DELETE n" {
		t.Errorf("retry must echo the rejected completion, got %+v", retry.Messages[1])
	}
	if !strings.Contains(retry.Messages[2].Content, `write operation "delete"`) {
		t.Errorf("feedback missing validator finding: %q", retry.Messages[2].Content)
	}
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponses: []*llm.CompletionResponse{
		completion("MATCH (n) DELETE n"),
	}}
	g := querygen.New(p, querygen.WithExplanation(false))

	art, err := g.Generate(context.Background(), "Which customers should we call today?", contextBundle(),
		querygen.WithMaxRetries(1))
	if art != nil {
		t.Fatalf("expected nil artifact, got %+v", art)
	}
	if !errs.IsKind(err, errs.KindQueryGeneration) {
		t.Fatalf("error kind = %v, want query generation", errs.KindOf(err))
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
	if len(p.CompleteCalls) != 2 {
		t.Errorf("Complete calls = %d, want 2", len(p.CompleteCalls))
	}
}

func TestGenerate_TransportFailureConsumesRetries(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteErr: errors.New("model offline")}
	g := querygen.New(p, querygen.WithExplanation(false))

	_, err := g.Generate(context.Background(), "Which customers should we call today?", contextBundle(),
		querygen.WithMaxRetries(2))
	if !errs.IsKind(err, errs.KindQueryGeneration) {
		t.Fatalf("error kind = %v, want query generation", errs.KindOf(err))
	}
	if len(p.CompleteCalls) != 3 {
		t.Errorf("Complete calls = %d, want 3", len(p.CompleteCalls))
	}
}

func TestGenerate_ScopedPromptUsesSemanticBranch(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponses: []*llm.CompletionResponse{
		completion("MATCH (n:Customer) WHERE n.status = 'churned' RETURN DISTINCT n LIMIT 100"),
		completion("Lists customers who have churned."),
	}}
	g := querygen.New(p)

	// The question alone would hit the list_all template; the detected
	// scope must force the LLM path.
	art, err := g.Generate(context.Background(), "List all customers", scopedBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if art.Metadata.TemplateUsed != "" {
		t.Errorf("template used = %q, want none", art.Metadata.TemplateUsed)
	}

	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.SystemPrompt, "DISTINCT") {
		t.Errorf("system prompt missing distinct rule: %q", req.SystemPrompt)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"## Detected scopes",
		"### churned (entity Customer)",
		"Customers whose subscription has lapsed.",
		"Specification:",
		"Rule: Exclude trial accounts.",
		"## Query patterns",
		"property_filter",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	for _, unwanted := range []string{"## Similar past queries", "## Example rows"} {
		if strings.Contains(prompt, unwanted) {
			t.Errorf("semantic prompt must not carry %q", unwanted)
		}
	}
}

func TestGenerate_ShedsPromptSectionsWhenOverBudget(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{
		TokenCount:        50000,
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 8192},
		CompleteResponses: []*llm.CompletionResponse{
			completion("MATCH (n:Customer) RETURN n LIMIT 5"),
		},
	}
	g := querygen.New(p, querygen.WithExplanation(false))

	_, err := g.Generate(context.Background(), "Which customers should we call today?", contextBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	prompt := p.CompleteCalls[0].Req.Messages[0].Content
	for _, unwanted := range []string{"## Example rows", "## Similar past queries"} {
		if strings.Contains(prompt, unwanted) {
			t.Errorf("over-budget prompt still carries %q", unwanted)
		}
	}
	if !strings.Contains(prompt, "## Graph schema") {
		t.Error("schema section must never be shed")
	}
	if len(p.CountTokensCalls) != 2 {
		t.Errorf("CountTokens calls = %d, want 2", len(p.CountTokensCalls))
	}
}

func TestGenerate_ExplanationFailureDegradesToWarning(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteErr: errors.New("model offline")}
	g := querygen.New(p)

	art, err := g.Generate(context.Background(), "List all customers", contextBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if art.Explanation != "" {
		t.Errorf("explanation = %q, want empty", art.Explanation)
	}
	if len(art.Warnings) != 1 || art.Warnings[0] != "explanation unavailable" {
		t.Errorf("warnings = %v, want [explanation unavailable]", art.Warnings)
	}
	if want := 0.9 - 0.05; art.Confidence != want {
		t.Errorf("confidence = %v, want %v", art.Confidence, want)
	}
}

func TestGenerate_ExplanationDisabled(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{}
	g := querygen.New(p, querygen.WithExplanation(false))

	art, err := g.Generate(context.Background(), "List all customers", contextBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if art.Explanation != "" {
		t.Errorf("explanation = %q, want empty", art.Explanation)
	}
	if len(p.CompleteCalls) != 0 {
		t.Errorf("Complete calls = %d, want 0", len(p.CompleteCalls))
	}
	if art.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", art.Confidence)
	}
}

func TestGenerate_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	g := querygen.New(&llmmock.Provider{})

	t.Run("blank question", func(t *testing.T) {
		t.Parallel()
		if _, err := g.Generate(context.Background(), "  ", contextBundle()); !errs.IsKind(err, errs.KindInvalidInput) {
			t.Fatalf("error kind = %v, want invalid input", errs.KindOf(err))
		}
	})
	t.Run("nil bundle", func(t *testing.T) {
		t.Parallel()
		if _, err := g.Generate(context.Background(), "List all customers", nil); !errs.IsKind(err, errs.KindInvalidInput) {
			t.Fatalf("error kind = %v, want invalid input", errs.KindOf(err))
		}
	})
}

func TestValidate_NilSchemaSkipsMembership(t *testing.T) {
	t.Parallel()
	g := querygen.New(&llmmock.Provider{})

	rep := g.Validate("MATCH (n:Custmer) RETURN n LIMIT 5", nil)
	if !rep.Valid {
		t.Fatalf("expected valid report, got errors %v", rep.Errors)
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("warnings = %v, want none without a schema", rep.Warnings)
	}
}

func TestSanitize_RespectsRowLimitOption(t *testing.T) {
	t.Parallel()
	g := querygen.New(&llmmock.Provider{})

	got := g.Sanitize("MATCH (n:Customer) RETURN n;", querygen.WithRowLimit(25))
	if want := "MATCH (n:Customer) RETURN n LIMIT 25"; got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestLibrary_IsReadOnlyCopy(t *testing.T) {
	t.Parallel()
	lib := querygen.Library()
	if len(lib) == 0 {
		t.Fatal("expected a non-empty pattern library")
	}
	for _, pat := range lib {
		if kw, found := entity.FindWriteKeyword(pat.Shape); found {
			t.Errorf("pattern %s carries write keyword %q", pat.Name, kw)
		}
	}

	lib[0].Name = "mutated"
	if querygen.Library()[0].Name == "mutated" {
		t.Fatal("Library() must return a copy")
	}
}
