package llm

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestExtractJSON_Bare checks that a bare object passes through unchanged.
func TestExtractJSON_Bare(t *testing.T) {
	t.Parallel()
	in := `{"query": "MATCH (n) RETURN n"}`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("expected %q, got %q", in, got)
	}
}

// TestExtractJSON_Fenced checks that markdown fences are stripped.
func TestExtractJSON_Fenced(t *testing.T) {
	t.Parallel()
	in := "```json\n{\"confidence\": 0.7}\n```"
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"confidence": 0.7}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

// TestExtractJSON_SurroundingProse checks that leading and trailing prose is dropped.
func TestExtractJSON_SurroundingProse(t *testing.T) {
	t.Parallel()
	in := `Here is the query you asked for: {"query": "MATCH (t:Team) RETURN t.name"} Let me know if you need more.`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"query": "MATCH (t:Team) RETURN t.name"}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

// TestExtractJSON_BracesInsideStrings checks that a stray closing brace inside
// a string literal does not terminate the scan early.
func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	t.Parallel()
	in := `{"note": "unmatched } inside", "ok": true}`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("expected %q, got %q", in, got)
	}
	if !json.Valid([]byte(got)) {
		t.Errorf("extracted text is not valid JSON: %q", got)
	}
}

// TestExtractJSON_MapLiteralInQuery checks the realistic case of a graph query
// carrying a map literal inside a JSON string value.
func TestExtractJSON_MapLiteralInQuery(t *testing.T) {
	t.Parallel()
	in := "Sure:\n```json\n{\"query\": \"MATCH (p:Person {name: $name}) RETURN p\", \"explanation\": \"looks up one person\"}\n```"
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Query       string `json:"query"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("extracted text does not decode: %v", err)
	}
	if out.Query != "MATCH (p:Person {name: $name}) RETURN p" {
		t.Errorf("unexpected query: %q", out.Query)
	}
}

// TestExtractJSON_EscapedQuotes checks that escaped quotes do not end the
// string-literal state.
func TestExtractJSON_EscapedQuotes(t *testing.T) {
	t.Parallel()
	in := `{"say": "she said \"hi {\" once"}`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("expected %q, got %q", in, got)
	}
}

// TestExtractJSON_Nested checks that nested objects are captured whole.
func TestExtractJSON_Nested(t *testing.T) {
	t.Parallel()
	in := `{"pagination": {"page": 3, "total": 57}}`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("expected %q, got %q", in, got)
	}
}

// TestExtractJSON_FirstOfMany checks that only the first object is returned.
func TestExtractJSON_FirstOfMany(t *testing.T) {
	t.Parallel()
	got, err := ExtractJSON(`{"a": 1} {"b": 2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a": 1}` {
		t.Errorf("expected first object, got %q", got)
	}
}

// TestExtractJSON_NoObject checks that prose without JSON returns an error.
func TestExtractJSON_NoObject(t *testing.T) {
	t.Parallel()
	if _, err := ExtractJSON("I cannot answer that."); err == nil {
		t.Fatal("expected error for reply without JSON")
	}
}

// TestExtractJSON_Unterminated checks that a cut-off object returns an error.
func TestExtractJSON_Unterminated(t *testing.T) {
	t.Parallel()
	if _, err := ExtractJSON(`{"query": "MATCH (n) RET`); err == nil {
		t.Fatal("expected error for unterminated object")
	}
}

// TestStripFence covers the fence-stripping variants.
func TestStripFence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"whitespace around", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
		{"missing closing fence", "```json\n{\"a\": 1}", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stripFence(tt.in); got != tt.want {
				t.Errorf("stripFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestWithJSONInstruction_EmptyPrompt checks the instruction stands alone
// when no system prompt is set.
func TestWithJSONInstruction_EmptyPrompt(t *testing.T) {
	t.Parallel()
	req := CompletionRequest{}.WithJSONInstruction()
	if req.SystemPrompt != JSONInstruction {
		t.Errorf("expected bare instruction, got %q", req.SystemPrompt)
	}
}

// TestWithJSONInstruction_AppendsAndCopies checks the instruction is appended
// and the original request is untouched.
func TestWithJSONInstruction_AppendsAndCopies(t *testing.T) {
	t.Parallel()
	orig := CompletionRequest{SystemPrompt: "You translate questions into graph queries."}
	req := orig.WithJSONInstruction()
	if !strings.HasPrefix(req.SystemPrompt, orig.SystemPrompt) {
		t.Errorf("expected original prompt preserved, got %q", req.SystemPrompt)
	}
	if !strings.HasSuffix(req.SystemPrompt, JSONInstruction) {
		t.Errorf("expected instruction appended, got %q", req.SystemPrompt)
	}
	if orig.SystemPrompt != "You translate questions into graph queries." {
		t.Errorf("original request mutated: %q", orig.SystemPrompt)
	}
}

// TestMessageConstructors checks the role helper shorthands.
func TestMessageConstructors(t *testing.T) {
	t.Parallel()
	if m := System("be terse"); m.Role != RoleSystem || m.Content != "be terse" {
		t.Errorf("unexpected system message: %+v", m)
	}
	if m := User("how many teams?"); m.Role != RoleUser || m.Content != "how many teams?" {
		t.Errorf("unexpected user message: %+v", m)
	}
	if m := Assistant("MATCH (t:Team) RETURN count(t)"); m.Role != RoleAssistant || m.Content != "MATCH (t:Team) RETURN count(t)" {
		t.Errorf("unexpected assistant message: %+v", m)
	}
}
