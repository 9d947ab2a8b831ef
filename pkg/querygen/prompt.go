package querygen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/graphseer/pkg/provider/llm"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

// completionReserve keeps room in the context window for the reply.
const completionReserve = 1024

type promptSection struct {
	title string
	body  string
}

// buildPrompt assembles the system and user prompts from the retrieval
// bundle. The semantic branch fires when scopes were detected and renders
// their specs in full; the plain branch carries similar past queries and
// example rows instead. When the provider reports a context window, the
// droppable sections are shed (example rows first, then similar queries)
// until the prompt fits.
func buildPrompt(ctx context.Context, p llm.Provider, question string, b *retrieve.Bundle, cfg settings) (string, string) {
	system := systemPrompt(cfg, b.Metadata)
	semantic := len(b.Metadata.Scopes) > 0

	core := []promptSection{{"Graph schema", renderSchema(b.Schema)}}
	var shed []promptSection
	if semantic {
		core = append(core, promptSection{"Detected scopes", renderScopes(b.Metadata)})
		core = append(core, promptSection{"Query patterns", renderPatterns()})
	} else {
		if body := renderEntities(b.Metadata); body != "" {
			core = append(core, promptSection{"Entities", body})
		}
		if body := renderSimilar(b.Similar); body != "" {
			shed = append(shed, promptSection{"Similar past queries", body})
		}
		if body := renderExamples(b.Examples); body != "" {
			shed = append(shed, promptSection{"Example rows", body})
		}
	}
	task := promptSection{"Question", strings.TrimSpace(question)}

	user := renderUser(core, shed, task)
	window := p.Capabilities().ContextWindow
	if window <= 0 {
		return system, user
	}
	for len(shed) > 0 {
		n, err := p.CountTokens([]llm.Message{llm.System(system), llm.User(user)})
		if err != nil {
			slog.DebugContext(ctx, "token count unavailable, keeping full prompt", "error", err)
			break
		}
		if n <= window-completionReserve {
			break
		}
		dropped := shed[len(shed)-1]
		shed = shed[:len(shed)-1]
		slog.DebugContext(ctx, "prompt over context window, dropping section", "section", dropped.title)
		user = renderUser(core, shed, task)
	}
	return system, user
}

func renderUser(core, shed []promptSection, task promptSection) string {
	var sb strings.Builder
	for _, s := range core {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", s.title, s.body)
	}
	for _, s := range shed {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", s.title, s.body)
	}
	fmt.Fprintf(&sb, "## %s\n\n%s\n", task.title, task.body)
	return sb.String()
}

func systemPrompt(cfg settings, m retrieve.Metadata) string {
	var sb strings.Builder
	sb.WriteString("You translate questions about a property graph into Cypher queries.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Reply with a single query and nothing else.\n")
	sb.WriteString("- Use only the labels, relationship types and properties listed in the schema.\n")
	fmt.Fprintf(&sb, "- Cap result rows with LIMIT %d or lower unless the query returns a single aggregate.\n", cfg.rowLimit)
	if !cfg.allowWrite {
		sb.WriteString("- The query must be read-only. Never use CREATE, MERGE, SET, DELETE, REMOVE, DETACH or DROP.\n")
	}
	if needsDistinct(m) {
		sb.WriteString("- Use DISTINCT in the RETURN clause: a detected scope requires de-duplicated results.\n")
	}
	return sb.String()
}

func needsDistinct(m retrieve.Metadata) bool {
	for _, sc := range m.Scopes {
		if sc.Spec.Distinct {
			return true
		}
	}
	return false
}

func renderSchema(s retrieve.SchemaSummary) string {
	return fmt.Sprintf("Labels: %s\nRelationship types: %s\nProperties: %s",
		strings.Join(s.Labels, ", "),
		strings.Join(s.Relationships, ", "),
		strings.Join(s.Properties, ", "))
}

// renderScopes writes each detected scope with its concept, the full YAML
// form of its spec, the business rules and the example questions.
func renderScopes(m retrieve.Metadata) string {
	names := lo.Keys(m.Scopes)
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		sc := m.Scopes[name]
		var sb strings.Builder
		fmt.Fprintf(&sb, "### %s (entity %s)\n", name, sc.Entity)
		if sc.Concept != "" {
			fmt.Fprintf(&sb, "Concept: %s\n", sc.Concept)
		}
		if spec, err := yaml.Marshal(sc.Spec); err == nil {
			fmt.Fprintf(&sb, "Specification:\n%s", indent(string(spec), "  "))
		}
		for _, rule := range sc.Rules {
			fmt.Fprintf(&sb, "Rule: %s\n", rule)
		}
		for _, ex := range sc.Examples {
			fmt.Fprintf(&sb, "Example question: %s\n", ex)
		}
		parts = append(parts, strings.TrimRight(sb.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func renderPatterns() string {
	var parts []string
	for _, p := range library {
		parts = append(parts, fmt.Sprintf("- %s: %s\n  Shape: %s", p.Name, p.Description, p.Shape))
	}
	return strings.Join(parts, "\n")
}

func renderEntities(m retrieve.Metadata) string {
	if len(m.Detected) == 0 {
		return ""
	}
	var parts []string
	for _, label := range m.Detected {
		meta := m.Entities[label]
		var sb strings.Builder
		fmt.Fprintf(&sb, "- %s", label)
		if meta.Description != "" {
			fmt.Fprintf(&sb, ": %s", meta.Description)
		}
		if len(meta.Aliases) > 0 {
			fmt.Fprintf(&sb, " (also called %s)", strings.Join(meta.Aliases, ", "))
		}
		props := lo.Keys(meta.PropertyDocs)
		sort.Strings(props)
		for _, prop := range props {
			fmt.Fprintf(&sb, "\n  - %s: %s", prop, meta.PropertyDocs[prop])
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n")
}

func renderSimilar(recs []retrieve.SimilarRecord) string {
	var parts []string
	for _, r := range recs {
		if r.Question == "" || r.Query == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Q: %s\nA: %s", r.Question, r.Query))
	}
	return strings.Join(parts, "\n\n")
}

func renderExamples(examples map[string][]map[string]any) string {
	labels := lo.Keys(examples)
	sort.Strings(labels)
	var parts []string
	for _, label := range labels {
		var rows []string
		for _, row := range examples[label] {
			if j, err := json.Marshal(row); err == nil {
				rows = append(rows, string(j))
			}
		}
		if len(rows) > 0 {
			parts = append(parts, fmt.Sprintf("%s:\n%s", label, strings.Join(rows, "\n")))
		}
	}
	return strings.Join(parts, "\n\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}
