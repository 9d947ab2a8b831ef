package llm

import (
	"fmt"
	"strings"
)

// JSONInstruction is appended to the system prompt by providers without a
// native JSON output mode before a CompleteJSON call.
const JSONInstruction = "Respond with a single valid JSON object and nothing else. No markdown fences, no commentary."

// WithJSONInstruction returns a copy of r whose SystemPrompt ends with
// [JSONInstruction]. Providers call it from CompleteJSON before dispatching.
func (r CompletionRequest) WithJSONInstruction() CompletionRequest {
	if r.SystemPrompt == "" {
		r.SystemPrompt = JSONInstruction
		return r
	}
	r.SystemPrompt += "\n\n" + JSONInstruction
	return r
}

// ExtractJSON returns the first complete JSON object found in s.
//
// Model replies frequently wrap their payload in markdown fences or surround
// it with prose even when told not to. ExtractJSON strips a surrounding
// ```json fence if present, then scans for the first balanced top-level
// object. Braces inside JSON string literals are ignored, which matters here
// because generated graph queries carry map literals like {name: $name} in
// their string values. Returns an error when s contains no complete object.
func ExtractJSON(s string) (string, error) {
	s = stripFence(s)

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", fmt.Errorf("llm: no JSON object in reply")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("llm: unterminated JSON object in reply")
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest := s[3:]
	// Drop the rest of the fence line, including any language tag.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
